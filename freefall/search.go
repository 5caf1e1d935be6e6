// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package freefall

import (
	"context"
	"slices"
	"strconv"
	"time"

	rpc "github.com/luxfi/freefall-rpc"
)

// DefaultCurrencyLabel is appended to prices when the peer omits the
// currency.
const DefaultCurrencyLabel = "$"

// SearchMessages maps search status codes to user facing text.
var SearchMessages = rpc.StatusMessages{
	"1000": "Search success, results found.",
	"1001": "There is no information about such routes at the moment. But we will check for you. Please come back in 15 minutes.",
	"1002": "There is no information about such routes at the moment.",
	"2000": "Search input was not correct.",
}

type SearchParams struct {
	V              string  `json:"v,omitempty"`
	FlyFrom        string  `json:"fly_from"`
	FlyTo          string  `json:"fly_to"`
	PriceTo        float64 `json:"price_to,omitempty"`
	Currency       string  `json:"currency"`
	DateFrom       string  `json:"date_from,omitempty"`
	DateTo         string  `json:"date_to,omitempty"`
	Sort           string  `json:"sort"`
	MaxFlyDuration float64 `json:"max_fly_duration,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Offset         int     `json:"offset,omitempty"`
}

// Leg is one flight of a route.
type Leg struct {
	AirportFrom  string    `json:"airport_from"`
	AirportTo    string    `json:"airport_to"`
	CityFrom     string    `json:"cityFrom,omitempty"`
	CityTo       string    `json:"cityTo,omitempty"`
	Return       bool      `json:"return"`
	DTime        time.Time `json:"dtime"`
	ATime        time.Time `json:"atime"`
	AirlineLogo  string    `json:"airline_logo"`
	AirlineName  string    `json:"airline_name"`
	FlightNumber string    `json:"flight_number"`
}

// Route is a bookable sequence of legs. DTime and ATime are the departure
// of the first leg and the arrival of the last one.
type Route struct {
	BookingToken string  `json:"booking_token"`
	Price        float64 `json:"price"`
	Legs         []Leg   `json:"route"`

	PriceLabel string    `json:"-"`
	DTime      time.Time `json:"-"`
	ATime      time.Time `json:"-"`
}

type SearchResult struct {
	StatusCode rpc.StatusCode `json:"status_code"`
	Currency   string         `json:"currency,omitempty"`
	Routes     []Route        `json:"routes"`

	// Notice is the message for a successful search that found nothing
	// yet, empty when results were found.
	Notice string `json:"-"`
}

var search = &rpc.Method[SearchParams, SearchResult]{
	Name:     "search",
	Status:   func(r *SearchResult) string { return string(r.StatusCode) },
	Messages: SearchMessages,
	Post:     func(_ *rpc.Session, r *SearchResult) error { return arrangeRoutes(r) },
}

// Search looks up routes. Legs of every route are ordered by departure and
// routes are ordered by their first departure, keeping the peer's order
// for equal departures.
func (c *Client) Search(ctx context.Context, p SearchParams) *rpc.Future[SearchResult] {
	return search.Invoke(ctx, c.session, c.protocol, p)
}

func arrangeRoutes(r *SearchResult) error {
	currency := r.Currency
	if currency == "" {
		currency = DefaultCurrencyLabel
	}

	for i := range r.Routes {
		route := &r.Routes[i]
		if len(route.Legs) == 0 {
			return rpc.Peer("search route %d (%s) has no legs", i, route.BookingToken)
		}
		for k, leg := range route.Legs {
			if leg.DTime.IsZero() || leg.ATime.IsZero() {
				return rpc.Peer("search route %d leg %d has no departure or arrival time", i, k)
			}
		}

		route.PriceLabel = strconv.FormatFloat(route.Price, 'f', -1, 64) + " " + currency
		slices.SortStableFunc(route.Legs, func(a, b Leg) int {
			return a.DTime.Compare(b.DTime)
		})
		route.DTime = route.Legs[0].DTime
		route.ATime = route.Legs[len(route.Legs)-1].ATime
	}

	slices.SortStableFunc(r.Routes, func(a, b Route) int {
		return a.DTime.Compare(b.DTime)
	})

	if code := string(r.StatusCode); code != "1000" {
		r.Notice = SearchMessages[code]
	}
	return nil
}
