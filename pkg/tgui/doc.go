// Package tgui provides small Telegram HTML helpers used when rendering
// job status messages and mentions with ParseMode="HTML".
//
// Values of type H are treated as already-escaped; build them through the
// helpers so user-supplied text is always escaped exactly once.
package tgui
