// Command httpqueue-demo shows a minimal end-to-end use of the dispatch
// queue: a GET request submitted twice against a disk cache, the second
// time served from cache without hitting the network.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sandrolain/httpqueue"
	"github.com/sandrolain/httpqueue/diskcache"
)

// rawBodyParser treats the response body as the result. It returns no
// CacheEntry, so responses parsed by it are not written to the cache.
type rawBodyParser struct{}

func (rawBodyParser) ParseNetworkResponse(resp *httpqueue.NetworkResponse) (any, *httpqueue.CacheEntry, error) {
	return resp.Body, nil, nil
}

func (rawBodyParser) ParseNetworkError(err httpqueue.RequestError) httpqueue.RequestError {
	return err
}

// settler blocks the demo's main goroutine until a request finishes.
type settler struct {
	done chan struct{}
}

func (s *settler) DeliverResponse(result any, intermediate bool) {
	body, _ := result.([]byte)
	fmt.Printf("delivered: %d bytes, intermediate=%v\n", len(body), intermediate)
	if !intermediate {
		close(s.done)
	}
}

func (s *settler) OnErrorResponse(err error) {
	fmt.Printf("error: %v\n", err)
	close(s.done)
}

func main() {
	tmpDir, err := os.MkdirTemp("", "httpqueue-demo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cache, err := diskcache.New(tmpDir, diskcache.DefaultMaxSize)
	if err != nil {
		log.Fatal(err)
	}

	queue := httpqueue.NewQueue(cache, httpqueue.NewHTTPClientStack(nil))
	queue.Start()
	defer queue.Stop()

	url := "https://httpbin.org/cache/300"

	fmt.Println("First request (network fetch)...")
	submitAndWait(queue, url)

	time.Sleep(100 * time.Millisecond)

	fmt.Println("Second request (should be served from cache)...")
	submitAndWait(queue, url)
}

func submitAndWait(queue *httpqueue.Queue, url string) {
	s := &settler{done: make(chan struct{})}
	req := httpqueue.NewRequest(httpqueue.Get, url, nil)
	req.Delivery = s
	req.ErrorListener = s
	queue.Add(req)
	<-s.done
}
