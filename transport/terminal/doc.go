// Package terminal renders a 2048 board to a text terminal with
// gookit/color, for the play command.
package terminal
