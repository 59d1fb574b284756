// Command weatherdecode loads a weather scenario file, decodes it, and
// prints the most likely sequence along with the committed message
// history.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tilematch/viterbi-go/examples/weather"
	"github.com/tilematch/viterbi-go/examples/weather/viz"
	"github.com/tilematch/viterbi-go/viterbi"
	"github.com/tilematch/viterbi-go/viterbi/emit"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a weather scenario YAML file")
	jsonLog := flag.Bool("json", false, "emit structured JSON logs instead of text")
	vizAddr := flag.String("viz-addr", "", "if set, serve a live frontier visualization on this address (e.g. :8080)")
	dump := flag.Bool("dump", false, "print the parsed scenario back as YAML before decoding")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: weatherdecode -scenario path/to/scenario.yaml")
		os.Exit(2)
	}

	if err := run(*scenarioPath, *jsonLog, *vizAddr, *dump); err != nil {
		log.Fatal(err)
	}
}

func run(scenarioPath string, jsonLog bool, vizAddr string, dump bool) error {
	sc, err := weather.LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	if dump {
		out, err := sc.YAML()
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	}

	observations, err := sc.UmbrellaSequence()
	if err != nil {
		return err
	}
	model, err := sc.Model()
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		return fmt.Errorf("weatherdecode: scenario %q has no observations", sc.Name)
	}

	emitter := emit.NewLogEmitter(os.Stdout, jsonLog)
	metrics := viterbi.NewMetrics(prometheus.NewRegistry())

	var vizServer *viz.Server
	if vizAddr != "" {
		vizServer = viz.NewServer()
		go func() {
			if err := vizServer.ListenAndServe(vizAddr); err != nil {
				log.Printf("weatherdecode: viz server stopped: %v", err)
			}
		}()
	}

	decoder := viterbi.NewDecoder[weather.Weather, weather.Umbrella, weather.Label](
		viterbi.WithRunID(sc.Name),
		viterbi.WithEmitter(emitter),
		viterbi.WithMetrics(metrics),
		viterbi.WithKeepMessageHistory(true),
	)

	broadcastStep := func(step int) {
		if vizServer == nil {
			return
		}
		history := decoder.MessageHistory()
		if step >= len(history) {
			return
		}
		vizServer.Broadcast(viz.StepUpdate{
			RunID:   sc.Name,
			Step:    step,
			Message: viz.MessageAsProbabilities(history[step]),
			Broken:  decoder.IsBroken(),
		})
	}

	if err := decoder.StartWithInitialObservation(
		observations[0],
		weather.Candidates,
		model.EmissionLogProbs(weather.Candidates, observations[0]),
	); err != nil {
		return err
	}
	broadcastStep(0)

	prev := weather.Candidates
	for i, obs := range observations[1:] {
		if decoder.IsBroken() {
			break
		}
		if err := decoder.NextStep(
			obs,
			weather.Candidates,
			model.EmissionLogProbs(weather.Candidates, obs),
			model.TransitionLogProbs(prev, weather.Candidates),
			weather.TransitionDescriptors(prev, weather.Candidates),
		); err != nil {
			return err
		}
		broadcastStep(i + 1)
		prev = weather.Candidates
	}

	sequence := decoder.ComputeMostLikelySequence()
	fmt.Printf("scenario: %s\n", sc.Name)
	fmt.Printf("broken: %v\n", decoder.IsBroken())
	fmt.Print("sequence:")
	for _, s := range sequence {
		fmt.Printf(" %s(%s)", s.State, s.TransitionDescriptor)
	}
	fmt.Println()

	for i, msg := range decoder.MessageHistory() {
		fmt.Printf("step %d: %v\n", i, msg)
	}

	return nil
}
