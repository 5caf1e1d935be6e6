// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package freefall

import (
	"strings"

	rpc "github.com/luxfi/freefall-rpc"
)

// AirportName returns the name of the airport with id. An empty id is an
// application error; an id missing from airports is a peer error, since
// ids only come from the peer.
func (c *Client) AirportName(airports []Airport, id string) (string, error) {
	s := c.session
	s.Trace().Recordf("AirportName(%s)", id)

	if err := s.AssertApplication(id != "", "airport id must not be empty"); err != nil {
		return "", err
	}
	for _, a := range airports {
		if a.ID == id {
			return a.Name, nil
		}
	}
	return "", s.Raise(rpc.Peer("could not find airport with id %s", id))
}

// AirportID returns the id of the airport named name, compared without
// surrounding space and case.
func (c *Client) AirportID(airports []Airport, name string) (string, error) {
	s := c.session
	s.Trace().Recordf("AirportID(%s)", name)

	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := s.AssertApplication(normalized != "", "airport name must not be empty"); err != nil {
		return "", err
	}
	for _, a := range airports {
		if strings.ToLower(strings.TrimSpace(a.Name)) == normalized {
			return a.ID, nil
		}
	}
	return "", s.Raise(rpc.Peer("could not find airport with name %s", name))
}
