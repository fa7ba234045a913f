// Package agent defines the decision agents autoplay can drive.
//
// Every agent sees the board as flattened log2 tile values and answers with a
// direction, or engine.NoMove when nothing can move. RandomAgent and
// LearnedAgent run in process; the heuristic search modes are delegated to an
// external solver through RemoteAgent, which posts the board to
// {solver}/findmove.
package agent
