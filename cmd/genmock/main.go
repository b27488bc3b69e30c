// Command genmock generates synthetic monthly scheme metrics for every
// catalog district. Records are written as JSON lines and can optionally be
// published to the ingestion topic, which makes it the quickest way to seed a
// local stack.
//
// Usage:
//
//	go run ./cmd/genmock -from 2024-01 -months 12 -out data/mock/metrics.jsonl
//	go run ./cmd/genmock -from 2024-01 -months 3 -publish -brokers localhost:9092
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/jonboulle/clockwork"

	kafkaadapter "github.com/couchcryptid/district-analytics-service/internal/adapter/kafka"
	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/mockdata"
	"github.com/couchcryptid/district-analytics-service/internal/registry"
)

const publishBatch = 500

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	from := flag.String("from", "", "first month to generate, YYYY-MM (required)")
	months := flag.Int("months", 12, "number of consecutive months per district")
	seed := flag.Uint64("seed", 1, "random seed; the same seed reproduces the same output")
	ingestedAt := flag.String("ingested-at", "", "RFC3339 ingestion timestamp stamped on every record (default now)")
	catalog := flag.String("districts", "", "district catalog JSON (default embedded catalog)")
	out := flag.String("out", "-", "output path for JSON lines, - for stdout, empty to skip")
	publish := flag.Bool("publish", false, "publish records to Kafka")
	brokers := flag.String("brokers", sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "comma-separated Kafka brokers")
	topic := flag.String("topic", sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "district-monthly-metrics"), "Kafka topic to publish to")
	flag.Parse()

	if *from == "" || *months < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -from, and -months must be positive")
	}
	start, err := domain.ParseMonth(*from)
	if err != nil {
		return err
	}

	stamp := time.Now().UTC()
	if *ingestedAt != "" {
		if stamp, err = time.Parse(time.RFC3339, *ingestedAt); err != nil {
			return fmt.Errorf("parse -ingested-at: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	reg, err := registry.Load(registry.Options{CatalogFile: *catalog, Logger: logger})
	if err != nil {
		return err
	}

	gen := mockdata.NewGenerator(*seed, clockwork.NewFakeClockAt(stamp))
	metrics := gen.Series(reg.List(), start, *months)
	log.Printf("generated %d records for %d districts, %s to %s",
		len(metrics), reg.Len(), start, start.AddMonths(*months-1))

	if *out != "" {
		if err := writeLines(*out, metrics); err != nil {
			return fmt.Errorf("writing records: %w", err)
		}
		if *out != "-" {
			log.Printf("wrote %s", *out)
		}
	}

	if *publish {
		if err := publishAll(sharedcfg.ParseBrokers(*brokers), *topic, metrics, logger); err != nil {
			return err
		}
		log.Printf("published %d records to %s", len(metrics), *topic)
	}

	printStats(metrics)
	return nil
}

func writeLines(path string, metrics []domain.MonthlyMetric) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range metrics {
		if err := enc.Encode(metrics[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func publishAll(brokers []string, topic string, metrics []domain.MonthlyMetric, logger *slog.Logger) error {
	w := kafkaadapter.NewWriter(brokers, topic, logger)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for i := 0; i < len(metrics); i += publishBatch {
		end := min(i+publishBatch, len(metrics))
		if err := w.PublishMetrics(ctx, metrics[i:end]); err != nil {
			return fmt.Errorf("publish records %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// printStats shows how the default scoring table grades the generated data,
// which is handy when tuning SCORING_CONFIG_FILE.
func printStats(metrics []domain.MonthlyMetric) {
	scorer, err := domain.NewScorer(domain.DefaultScoringConfig())
	if err != nil {
		return
	}

	grades := map[domain.Grade]int{}
	var sum float64
	byMonth := map[string]int{}
	for _, m := range metrics {
		score, grade := scorer.Score(m)
		grades[grade]++
		sum += score
		byMonth[m.Month.String()]++
	}

	fmt.Fprintln(os.Stderr, "\n=== Generated data ===")
	fmt.Fprintf(os.Stderr, "Records: %d\n", len(metrics))
	if len(metrics) > 0 {
		fmt.Fprintf(os.Stderr, "Average score: %.2f\n", sum/float64(len(metrics)))
	}
	fmt.Fprint(os.Stderr, "Grades:")
	for _, g := range domain.Grades {
		fmt.Fprintf(os.Stderr, " %s=%d", g, grades[g])
	}
	fmt.Fprintln(os.Stderr)

	monthKeys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		monthKeys = append(monthKeys, k)
	}
	sort.Strings(monthKeys)
	fmt.Fprintf(os.Stderr, "Months (%d): %s .. %s\n", len(monthKeys), monthKeys[0], monthKeys[len(monthKeys)-1])
}
