package irc_manager

import "github.com/google/wire"

var Wired = wire.NewSet(
	NewConfig,
	NewBackend,
	New,
)
