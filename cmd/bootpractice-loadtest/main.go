// Command bootpractice-loadtest drives the refresh token store with
// concurrent validate, rotate and contended-rotate phases and prints
// latency percentiles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Kascald/bootPractice-2/tokenstore"
)

type chain struct {
	subject string
	current string
	mu      sync.Mutex
}

func main() {
	var (
		subjects    = flag.Int("subjects", 10000, "number of subjects to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		racers      = flag.Int("racers", 64, "goroutines rotating one token in the contention phase")
		backend     = flag.String("store", "redis", "token store: redis or memory")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "bp", "redis key prefix")
	)
	flag.Parse()

	if *subjects <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "subjects, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	store, cleanup, err := openStore(*backend, *redisAddr, *prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	chains := make([]chain, *subjects)
	fmt.Printf("seeding %d subjects...\n", *subjects)
	startSeed := time.Now()
	for i := range chains {
		chains[i] = chain{subject: fmt.Sprintf("user-%d", i), current: uuid.NewString()}
		if err := store.Record(ctx, record(chains[i].subject, chains[i].current)); err != nil {
			fmt.Fprintf(os.Stderr, "record failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		c := &chains[r.Intn(len(chains))]
		c.mu.Lock()
		id := c.current
		c.mu.Unlock()
		ok, err := store.IsValid(ctx, id)
		if err == nil && !ok {
			err = tokenstore.ErrRevoked
		}
		return err
	})

	rotateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		c := &chains[r.Intn(len(chains))]
		c.mu.Lock()
		defer c.mu.Unlock()
		next := uuid.NewString()
		if err := store.Rotate(ctx, c.current, record(c.subject, next)); err != nil {
			return err
		}
		c.current = next
		return nil
	})

	winners, losers, raceErr := contend(ctx, store, &chains[0], *racers)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("rotate", rotateStats)
	fmt.Printf("contended rotate: racers=%d winners=%d losers=%d\n", *racers, winners, losers)
	if raceErr != nil {
		fmt.Fprintf(os.Stderr, "contended rotate error: %v\n", raceErr)
		os.Exit(1)
	}
	if winners != 1 {
		fmt.Fprintln(os.Stderr, "contended rotate must have exactly one winner")
		os.Exit(1)
	}
}

func openStore(backend, addr, prefix string) (tokenstore.Store, func(), error) {
	if backend == "memory" {
		fmt.Println("using in-memory store")
		return tokenstore.NewMemoryStore(), func() {}, nil
	}

	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}
	return tokenstore.NewRedisStore(client, prefix), cleanup, nil
}

func record(subject, id string) tokenstore.Record {
	now := time.Now()
	return tokenstore.Record{TokenID: id, Subject: subject, IssuedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
}

// contend rotates one token from many goroutines at once.
func contend(ctx context.Context, store tokenstore.Store, c *chain, racers int) (int64, int64, error) {
	var (
		wg              sync.WaitGroup
		mu              sync.Mutex
		winners, losers int64
		firstErr        error
		start           = make(chan struct{})
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := store.Rotate(ctx, c.current, record(c.subject, uuid.NewString()))
			switch {
			case err == nil:
				atomic.AddInt64(&winners, 1)
			case errors.Is(err, tokenstore.ErrRevoked):
				atomic.AddInt64(&losers, 1)
			default:
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	return winners, losers, firstErr
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
