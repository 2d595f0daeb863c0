// Package store provides session.Store backends and the asynchronous
// recorder that feeds them from the charging controller.
package store
