// Command handoff-graph validates a handoff graph file and prints its
// transitions, either as a list or in Graphviz format.
package main

import (
	"flag"
	"fmt"
	"os"

	"phoneai_backend/internal/agents"
	"phoneai_backend/internal/handoff"
	"phoneai_backend/platform/logger"
)

func main() {
	file := flag.String("file", "", "graph YAML file (defaults to the embedded graph)")
	dot := flag.Bool("dot", false, "print the graph in Graphviz DOT format")
	flag.Parse()

	log := logger.New("development")

	graph, err := load(*file)
	if err != nil {
		log.Error("invalid handoff graph", "file", *file, "error", err)
		os.Exit(1)
	}

	if *dot {
		fmt.Print(graph.DOT())
		return
	}

	fmt.Printf("initial: %s\n", graph.Initial())
	for _, node := range graph.Nodes() {
		fmt.Printf("%s (%s)\n", node.Name, node.DisplayName)
		for _, dst := range graph.Destinations(node.Name) {
			fmt.Printf("  -> %s via %s\n", dst, agents.TransferOperation(dst))
		}
	}
}

func load(path string) (*handoff.Graph, error) {
	if path == "" {
		return handoff.DefaultGraph()
	}
	return handoff.LoadGraphFile(path)
}
