// Package agentloop executes tasks through an iterative reason/act cycle:
// the model proposes one action per turn as a structured
// {thought, action, action_input} object, the loop executes the named tool,
// and the observation feeds the next turn. The cycle ends when the model
// emits the "finish" action, the step budget runs out, a confirmation-gated
// tool suspends the run, or the caller cancels.
//
// Recoverable failures never end a run. Malformed responses, unknown tools,
// tool errors, and request timeouts all become corrective observations the
// model sees on its next turn, each consuming one step of the budget.
//
//	tools := registry.Subset("read_file", "write_file")
//	loop := agentloop.New(provider, tools, agentloop.Options{MaxSteps: 10})
//	result, err := loop.Run(ctx, "rename the Config struct to Settings")
//
// Progress is observable through the run's event channel:
//
//	go func() {
//	    for ev := range loop.Events() {
//	        fmt.Println(ev.Kind, ev.Data)
//	    }
//	}()
package agentloop
