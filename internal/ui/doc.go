// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for reviewing and liking frequently played tracks:
//  1. [CandidateListView] : Browse history aggregates above the play threshold
//  2. [ConfirmView] : Confirm the like run
//  3. [RunView] : Monitor real-time progress updates
//  4. [ResultView] : Display run counts and per-item failures
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the LikerEngine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
