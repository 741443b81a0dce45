// predict-cli is a terminal demonstration of the facade end to end: load a
// Maia policy network for a rating, feed it FEN positions, and print the
// decoded top-K move predictions alongside the heuristic fallback when the
// model is unavailable.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maia-engine/predictor/internal/config"
	"github.com/maia-engine/predictor/internal/decoder"
	"github.com/maia-engine/predictor/internal/lifecycle"
	"github.com/maia-engine/predictor/internal/obs"
)

const banner = `
╔═══════════════════════════════════════════════════════════╗
║   maia-predictor — human move prediction, in the browser  ║
╚═══════════════════════════════════════════════════════════╝
`

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (defaults built in if omitted)")
	rating := flag.Int("rating", 1500, "Maia rating band to load (1100-1900, step 100)")
	fen := flag.String("fen", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", "starting FEN to analyze")
	topK := flag.Int("top", 5, "number of candidate moves to show")
	useWorker := flag.Bool("worker", true, "run inference on a background worker instead of in-process")
	flag.Parse()

	fmt.Print(banner)

	cfg := loadConfig(*configPath)
	cfg.Engine.UseWorker = *useWorker
	cfg.Engine.TopK = *topK

	logger, err := obs.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	coord := lifecycle.New(*cfg, logger)
	defer coord.Dispose()

	targetRating := coord.GetClosestRating(*rating)
	if targetRating != *rating {
		fmt.Printf("Maia-%d is not published; using the closest available band, Maia-%d (available: %v)\n",
			*rating, targetRating, coord.GetAvailableRatings())
	}

	fmt.Printf("Loading Maia-%d...\n", targetRating)
	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.LoadTimeout)
	loadErr := coord.LoadModel(loadCtx, targetRating)
	cancel()
	if loadErr != nil {
		fmt.Printf("⚠ model load failed (%v); predictions will use the heuristic fallback\n", loadErr)
	} else {
		fmt.Println("✓ model ready")
	}

	predictCtx, cancelPredict := context.WithTimeout(context.Background(), cfg.Engine.PredictTimeout)
	result, err := coord.Predict(predictCtx, *fen)
	cancelPredict()
	if err != nil {
		log.Fatalf("predict: %v", err)
	}

	printPredictions(*fen, result.Predictions, result.Fallback, result.InferenceTimeMs, *topK)

	if isInteractive() {
		runREPL(coord, *topK)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("config: %v; falling back to defaults", err)
		return config.Default()
	}
	return cfg
}

func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func runREPL(coord *lifecycle.Coordinator, topK int) {
	fmt.Println("\nEnter a FEN to analyze, 'rating N' to switch bands, or empty line to quit.")
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}

		if strings.HasPrefix(line, "rating ") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "rating")))
			if err != nil {
				fmt.Println("usage: rating <1100-1900>")
				continue
			}
			n = coord.GetClosestRating(n)
			coord.SelectRating(n, func(err error) {
				if err != nil {
					fmt.Printf("\n⚠ rating switch failed: %v\n> ", err)
				} else {
					fmt.Printf("\n✓ now using Maia-%d\n> ", n)
				}
			})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		result, err := coord.Predict(ctx, line)
		cancel()
		if err != nil {
			fmt.Printf("predict failed: %v\n", err)
			continue
		}
		printPredictions(line, result.Predictions, result.Fallback, result.InferenceTimeMs, topK)
	}
}

func printPredictions(fen string, predictions []decoder.Prediction, fallback bool, inferenceMs float64, topK int) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("FEN: %s\n", fen)
	if fallback {
		fmt.Println("source: heuristic fallback (model unavailable)")
	} else {
		fmt.Printf("source: Maia policy network (%.1fms)\n", inferenceMs)
	}
	fmt.Println(strings.Repeat("-", 60))

	if len(predictions) == 0 {
		fmt.Println("(terminal position, no legal moves)")
		return
	}

	for i, p := range predictions {
		if i >= topK {
			break
		}
		bar := makeBar(p.Probability, 20)
		fmt.Printf("%d. %-6s %s %6.2f%%\n", i+1, p.UCI, bar, p.Probability*100)
	}
}

func makeBar(prob float64, width int) string {
	filled := int(prob * float64(width))
	if filled > width {
		filled = width
	}
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteByte('#')
		} else {
			b.WriteByte('.')
		}
	}
	b.WriteByte(']')
	return b.String()
}
