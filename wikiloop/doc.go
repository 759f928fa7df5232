// Package wikiloop implements the iterative tool-augmented generation loop
// behind repository documentation runs.
//
// A Runner drives bounded analysis rounds: each round assembles the prompt
// from history plus accumulated thoughts, invokes the model, aggregates the
// response (streamed or atomic), dispatches any tool calls sequentially, and
// feeds tool results back into the conversation. The loop terminates when a
// round produces no tool calls or the iteration cap is reached.
//
// Progress is observable only through the run's event stream: incremental
// response text, hierarchical telemetry spans (round, model call, tool call),
// and one terminal summary event carrying the last-observed usage.
//
// # Quick Start
//
//	invoker, _ := llm.NewGollmInvoker("openai", "")
//	tools := wikiloop.NewLocalToolProvider("/tmp/deepwiki")
//	runner := wikiloop.NewRunner(invoker, tools, wikiloop.DefaultConfig())
//
//	go func() {
//	    for event := range runner.Events() {
//	        fmt.Print(event.Text)
//	    }
//	}()
//
//	params, _ := wikiloop.DecodeParams(map[string]any{
//	    "repository_url": "https://github.com/org/repo",
//	})
//	params.Tools = tools.Instances()
//	if err := runner.Run(ctx, params); err != nil {
//	    log.Fatal(err)
//	}
package wikiloop
