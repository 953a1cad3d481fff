// Package ircmd turns chat command lines into task-control records for the
// infrared relay.
//
// Everything here is pure: parsing and translation never touch the network or
// the state store, so a Translator can be shared by every request worker.
package ircmd
