// Package ui implements an interactive terminal interface for a single import using bubbletea's Elm architecture.
//
// The TUI walks through one import:
//  1. [PreviewView] : Browse the normalized rows that will be searched
//  2. [ConfirmView] : Confirm playlist name, mode and threshold
//  3. [ImportView] : Monitor matching progress with a progress bar
//  4. [ResultView] : Display match counts and the unmatched rows
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.Importer], which never blocks on a slow terminal.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
