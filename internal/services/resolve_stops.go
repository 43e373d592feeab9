package services

import (
	"context"
	"load-tracking-service/internal/domain"
	"strings"
	"sync"
)

const maxConcurrentGeocodes = 5

type stopResult struct {
	index  int
	coords domain.Coordinates
	err    error
}

// resolveStops geocodes every stop with a bounded number of concurrent oracle
// calls, then reports the first failure in stop order so the outcome matches a
// sequential walk. Either every stop resolves or none is returned.
func resolveStops(ctx context.Context, gw *GeocodingGateway, stops []StopInput) ([]domain.Stop, error) {
	sem := make(chan struct{}, maxConcurrentGeocodes)
	resultsCh := make(chan stopResult, len(stops))
	var wg sync.WaitGroup

	for i, s := range stops {
		addr := strings.TrimSpace(s.Address)
		if addr == "" {
			continue
		}

		wg.Add(1)
		go func(i int, addr string) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			c, err := gw.Resolve(ctx, addr)
			resultsCh <- stopResult{index: i, coords: c, err: err}
		}(i, addr)
	}

	wg.Wait()
	close(resultsCh)

	results := make([]*stopResult, len(stops))
	for res := range resultsCh {
		res := res
		results[res.index] = &res
	}

	out := make([]domain.Stop, 0, len(stops))
	for i, s := range stops {
		addr := strings.TrimSpace(s.Address)
		if addr == "" {
			return nil, &domain.ValidationError{Message: "All stops must have an address"}
		}

		res := results[i]
		if res.err != nil {
			return nil, res.err
		}

		out = append(out, domain.Stop{
			Type:    s.Type,
			Address: addr,
			Lat:     res.coords.Lat,
			Lng:     res.coords.Lon,
		})
	}

	return out, nil
}
