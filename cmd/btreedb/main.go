// Command btreedb is the command-line/batch driver for the B-tree storage
// engine: it translates the operation vocabulary (CREATE, LOAD, INSERT,
// DELETE, UPDATE, SEARCH, PRINT, ADDRANDOM, FLUSH, EXIT) into calls against
// one open session.Session.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"btreedb/internal/dblog"
	"btreedb/session"
)

func main() {
	state := &appState{log: dblog.Nop()}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		if state.sess != nil {
			_ = state.sess.Flush()
		}
		os.Exit(0)
	}()

	root := newRootCommand(state)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// appState carries the one open session across cobra command invocations
// within a single process: script mode runs every line against it, and a
// session opened by one line stays open until an exit line closes it.
type appState struct {
	sess *session.Session
	log  *zap.SugaredLogger
}
