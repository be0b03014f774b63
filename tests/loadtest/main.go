package main

import (
	"bytes"
	"flag"
	"fmt"
	"freedomwall/internal/docstore"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	numWorkers     = 50
	numVisitors    = 2000
	numSubscribers = 20
)

var (
	baseURL      = flag.String("server", "http://127.0.0.1:8080", "daemon base URL")
	collection   = flag.String("collection", "loadtest", "collection to write into")
	testDuration = flag.Duration("duration", 10*time.Second, "length of each phase")
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	flag.Parse()

	fmt.Println("=== Freedom Wall Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Collection: %s\n", numWorkers, *testDuration, *collection)
	fmt.Printf("Visitors: %d | Live subscribers: %d\n\n", numVisitors, numSubscribers)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(*baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	visitors := make([]string, numVisitors)
	for i := range visitors {
		visitors[i] = "load_" + uuid.NewString()
	}

	fmt.Println("\n--- Phase 1: Posting (POST records) ---")
	runPhase(func(rng *rand.Rand) result {
		return doAppend(rng, visitors)
	})

	fmt.Printf("\n--- Phase 2: Posting with %d live subscribers ---\n", numSubscribers)
	frames, stop := startSubscribers()
	runPhase(func(rng *rand.Rand) result {
		if rng.Float64() < 0.5 {
			return doAppend(rng, visitors)
		}
		return doQuery(rng, visitors)
	})
	stop()
	fmt.Printf("  Snapshots delivered: %s\n", humanize.Comma(frames.Load()))

	fmt.Println("\n--- Phase 3: Visitor checks (90% GET records) ---")
	runPhase(func(rng *rand.Rand) result {
		if rng.Float64() < 0.10 {
			return doAppend(rng, visitors)
		}
		return doQuery(rng, visitors)
	})
}

func runPhase(workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					results <- workFn(rng)
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(*testDuration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, *testDuration)
}

// startSubscribers opens live feeds that count snapshot frames until stop is called.
func startSubscribers() (*atomic.Int64, func()) {
	var frames atomic.Int64
	wsURL := "ws" + strings.TrimPrefix(*baseURL, "http") + "/collections/" + url.PathEscape(*collection) + "/subscribe?orderBy=createdAt&direction=desc"

	var conns []*websocket.Conn
	var wg sync.WaitGroup
	for i := 0; i < numSubscribers; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			fmt.Printf("  subscriber %d failed: %s\n", i, err)
			continue
		}
		resp.Body.Close()
		conns = append(conns, conn)

		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			for {
				var frame docstore.Frame
				if err := conn.ReadJSON(&frame); err != nil {
					return
				}
				if frame.Type == docstore.FrameSnapshot {
					frames.Add(1)
				}
			}
		}(conn)
	}

	return &frames, func() {
		for _, conn := range conns {
			conn.Close()
		}
		wg.Wait()
	}
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + strings.Repeat("-", 88))
	fmt.Printf("  Total: %s reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		humanize.Comma(totalOps), totalErrors, float64(totalErrors)/float64(max(totalOps, 1))*100, rps)
}

func doAppend(rng *rand.Rand, visitors []string) result {
	column := rng.Intn(3)
	body := docstore.AppendRequest{Data: map[string]any{
		"name":         fmt.Sprintf("Visitor %d", rng.Intn(numVisitors)),
		"message":      "load test message",
		"visitorToken": visitors[rng.Intn(len(visitors))],
		"placement": map[string]any{
			"column":   column,
			"row":      rng.Intn(20),
			"x":        float64(column) * 33.33,
			"y":        rng.Float64() * 3600,
			"rotation": rng.Float64()*6 - 3,
			"color":    rng.Intn(6),
		},
	}}

	data, _ := json.Marshal(body)
	start := time.Now()
	resp, err := httpClient.Post(*baseURL+"/collections/"+url.PathEscape(*collection)+"/records", "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{"POST records", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"POST records", resp.StatusCode, lat, resp.StatusCode != http.StatusCreated}
}

func doQuery(rng *rand.Rand, visitors []string) result {
	token, _ := json.Marshal(visitors[rng.Intn(len(visitors))])
	q := url.Values{"field": {"visitorToken"}, "equals": {string(token)}}
	target := *baseURL + "/collections/" + url.PathEscape(*collection) + "/records?" + q.Encode()

	start := time.Now()
	resp, err := httpClient.Get(target)
	lat := time.Since(start)
	if err != nil {
		return result{"GET records", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET records", resp.StatusCode, lat, resp.StatusCode != http.StatusOK}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
