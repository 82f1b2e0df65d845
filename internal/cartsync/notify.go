package cartsync

import "log"

// Notifier receives the user-visible outcomes of cart operations, the
// equivalent of the storefront's toast messages. Background sync
// failures that self-heal are not reported through it.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Info(string)  {}
func (NopNotifier) Error(string) {}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Info(msg string)  { log.Printf("cart: %s", msg) }
func (LogNotifier) Error(msg string) { log.Printf("cart error: %s", msg) }
