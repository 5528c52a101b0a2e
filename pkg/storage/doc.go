// Package storage provides persistent key-value storage for kitchentimer.
// It uses BadgerDB as the embedded database. Values are raw bytes encoded by
// the caller, or JSON through Set and Get.
package storage
