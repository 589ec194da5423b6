package main

// Provider blank imports: each import activates a self-registering adapter.
// Add new providers here as they are implemented.

import (
	_ "github.com/Strob0t/opsboard/internal/adapter/linear"
	_ "github.com/Strob0t/opsboard/internal/adapter/slack"
)
