// fdsn-loadgen is a tiny, dependency-free HTTP load generator for exercising
// a running eida-federator. It reuses HTTP connections (keep-alive) and
// supports concurrency so it drives meaningful request volume without
// pulling in a full load-testing framework.
//
// Modes:
//   - single: repeat one stream query N times
//   - zipf:   approximate 80/20 skew: a hot stream 4/5 of the time, a
//     round-robin of cold streams the rest, exercising the cache's
//     idempotent-hit path under realistic skew, since real FDSN traffic
//     clusters heavily around a handful of popular stations.
//
// Usage examples:
//
//	fdsn-loadgen -base=http://127.0.0.1:8080 -mode=single -net=CH -sta=HASLI -cha=LHZ -n=5000 -c=16
//	fdsn-loadgen -base=http://127.0.0.1:8080 -mode=zipf -net=CH -hot_sta=HASLI -cold_stations=50 -n=8000 -c=16
//
// Notes:
//   - Uses GET against /fdsnws/<service>/1/query with net/sta/loc/cha/start/end.
//   - Prints a one-line summary with duration and approximate throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modeSingle modeType = "single"
	modeZipf   modeType = "zipf"
)

func main() {
	var (
		base    = flag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host, e.g. http://127.0.0.1:8080")
		service = flag.String("service", "dataselect", "FDSNWS service mount: station|dataselect|availability")
		modeS   = flag.String("mode", string(modeSingle), "Mode: single|zipf")
		net     = flag.String("net", "CH", "Network code for single mode")
		sta     = flag.String("sta", "HASLI", "Station code for single mode")
		loc     = flag.String("loc", "--", "Location code")
		cha     = flag.String("cha", "LHZ", "Channel code")
		start   = flag.String("start", "2019-01-01", "Query start time")
		end     = flag.String("end", "2019-01-05", "Query end time")
		hotSta  = flag.String("hot_sta", "HASLI", "Hot station for zipf mode")
		coldN   = flag.Int("cold_stations", 50, "Number of cold stations to round-robin in zipf mode")
		N       = flag.Int("n", 5000, "Total requests to send")
		conc    = flag.Int("c", 8, "Number of concurrent workers")
		// Deterministic skew: hotEvery=5 means 4/5 go to the hot station, 1/5 to a cold one.
		hotEvery = flag.Int("hot_every", 5, "Zipf-like skew period (all but 1 of this period go to hot; minimum 2)")
		// Timeouts & transport tuning
		timeout    = flag.Duration("timeout", 20*time.Second, "Overall timeout for the loadgen run")
		connIdle   = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle    = flag.Int("max_idle", 256, "Max idle connections total")
		maxIdlePer = flag.Int("max_idle_per_host", 256, "Max idle connections per host")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeSingle && m != modeZipf {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want single|zipf)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}
	if m == modeZipf {
		if *coldN <= 0 {
			fmt.Fprintln(os.Stderr, "-cold_stations must be > 0 in zipf mode")
			os.Exit(2)
		}
		if *hotEvery < 2 { // at least 1 hot : 1 cold
			*hotEvery = 2
		}
	}

	baseURL := strings.TrimRight(*base, "/")
	fullPath := fmt.Sprintf("%s/fdsnws/%s/1/query", baseURL, *service)

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	begin := time.Now()
	var done int64

	worker := func(id, count int) {
		defer atomic.AddInt64(&done, int64(count))
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var station string
			if m == modeSingle {
				station = *sta
			} else {
				// 80/20-ish deterministic skew: (i+id)%hotEvery != 0 => hot station
				if ((i + id) % *hotEvery) != 0 {
					station = *hotSta
				} else {
					idx := ((i + id) % *coldN) + 1
					station = fmt.Sprintf("S%03d", idx)
				}
			}
			q := url.Values{
				"net":   {*net},
				"sta":   {station},
				"loc":   {*loc},
				"cha":   {*cha},
				"start": {*start},
				"end":   {*end},
			}
			u := fullPath + "?" + q.Encode()
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			resp, err := client.Do(req)
			if err == nil {
				// Drain and close body to enable connection reuse
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			} else {
				// Brief backoff on errors to avoid hot spinning
				time.Sleep(200 * time.Microsecond)
			}
		}
	}

	// Split N across conc workers
	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()
	elapsed := time.Since(begin)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*N) / elapsed.Seconds()
	fmt.Printf("LoadGen: mode=%s N=%d c=%d go=%d Duration=%s Throughput=%.0f req/s\n", m, *N, *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), ops)
}
