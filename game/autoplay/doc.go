// Package autoplay drives a game unattended with one of the agent modes.
//
// An Orchestrator owns at most one play loop. Each iteration asks the agent
// for a direction on the current board, applies it and sleeps for whatever is
// left of the configured delay after the agent's own latency. A run ends when
// the game is over, the agent reports no legal move, the agent fails, the
// move limit is reached or Cancel is called. While the game waits for the
// player to continue after a win the loop idles and polls.
//
// Modes that need a learned model acquire it through the ResourceLoader. The
// first Activate starts the download and fails with ErrNotReady until the
// model is usable; download progress is reported as EventProgress events.
//
// Usage:
//
//	o := autoplay.New(game, autoplay.Config{
//		Delay:        100 * time.Millisecond,
//		PollInterval: 10 * time.Millisecond,
//		Factory:      agent.NewFactory(agent.FactoryConfig{}),
//	})
//	o.OnEvent(func(ev autoplay.Event) { ... })
//	if err := o.SelectMode(agent.ModeRandom); err != nil {
//		return err
//	}
//	if err := o.Activate(ctx); err != nil {
//		return err
//	}
//	<-o.Done()
package autoplay
