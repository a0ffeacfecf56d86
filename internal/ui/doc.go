// Package ui renders lifxlab CLI output with Lipgloss.
//
// Components follow a "run once and exit" pattern: each command prints a
// Header describing what it is about to do, then a Table of devices and a
// Result box summarizing the outcome.
//
//   - Header: command banner showing operation name and parameters
//   - Table: aligned device columns
//   - Result: success, warning or failure box
//
// RenderDiscovery, RenderDevices, RenderReport and RenderBridges combine
// these for the corresponding commands.
//
// On an interactive terminal, RunDiscoveryProgress runs a Bubble Tea
// program while a discovery cycle is listening, showing each device as it
// replies. Its last frame is blank so the RenderDiscovery summary follows.
//
// Logging is controlled separately via LIFXLAB_LOG_LEVEL and goes to stderr,
// so it never interleaves with the rendered output on stdout.
package ui
