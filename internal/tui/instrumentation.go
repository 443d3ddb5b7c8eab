package tui

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/exajoy/aider/internal/tui"

var logger = otelslog.NewLogger(scopeName)
