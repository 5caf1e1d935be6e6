// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package freefall binds the FreeFall API methods to typed wrappers over an
// rpc.Session.
package freefall

import (
	"context"
	"unicode/utf8"

	rpc "github.com/luxfi/freefall-rpc"
)

// MinPasswordLength is the shortest password ModifyCredentials will send.
const MinPasswordLength = 8

// Client calls FreeFall methods over one session in one protocol.
type Client struct {
	session  *rpc.Session
	protocol string
}

// New returns a client for session that encodes every call with protocol
// ("jsonrpc", "yamlrpc" or "cborrpc").
func New(session *rpc.Session, protocol string) *Client {
	return &Client{session: session, protocol: protocol}
}

// Session returns the underlying session.
func (c *Client) Session() *rpc.Session { return c.session }

// Protocol returns the protocol name used for calls.
func (c *Client) Protocol() string { return c.protocol }

// Airport is one entry of list_airports.
type Airport struct {
	ID       string `json:"id"`
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
}

type ListAirportsParams struct {
	V string `json:"v,omitempty"`
}

type ListAirportsResult struct {
	Airports []Airport `json:"airports"`
}

type GetAPIKeyParams struct {
	V string `json:"v,omitempty"`
}

// GetAPIKeyResult carries the key of the logged in user. APIKey is nil when
// nobody is logged in.
type GetAPIKeyResult struct {
	APIKey     *string        `json:"api_key"`
	StatusCode rpc.StatusCode `json:"status_code,omitempty"`
}

// Subscription is a watched route.
type Subscription struct {
	ID       string `json:"id"`
	FlyFrom  string `json:"fly_from"`
	FlyTo    string `json:"fly_to"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

type ListSubscriptionsParams struct {
	V      string `json:"v,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

type ListSubscriptionsResult struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

type SubscribeParams struct {
	V        string `json:"v,omitempty"`
	FlyFrom  string `json:"fly_from"`
	FlyTo    string `json:"fly_to"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	APIKey   string `json:"api_key,omitempty"`
}

type SubscribeResult struct {
	SubscriptionID *string        `json:"subscription_id"`
	StatusCode     rpc.StatusCode `json:"status_code"`
}

type UnsubscribeParams struct {
	V                  string `json:"v,omitempty"`
	UserSubscriptionID string `json:"user_subscription_id"`
	APIKey             string `json:"api_key,omitempty"`
}

type EditSubscriptionParams struct {
	V                  string `json:"v,omitempty"`
	UserSubscriptionID string `json:"user_subscription_id"`
	FlyFrom            string `json:"fly_from"`
	FlyTo              string `json:"fly_to"`
	DateFrom           string `json:"date_from"`
	DateTo             string `json:"date_to"`
	APIKey             string `json:"api_key,omitempty"`
}

// StatusResult is the reply of methods that only report a status code.
type StatusResult struct {
	StatusCode rpc.StatusCode `json:"status_code,omitempty"`
}

type CreditHistoryParams struct {
	V      string `json:"v,omitempty"`
	APIKey string `json:"api_key,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type CreditEntry struct {
	ID                 string  `json:"id"`
	Reason             string  `json:"reason,omitempty"`
	SubscriptionPlanID *string `json:"subscription_plan_id,omitempty"`
	TransferAmount     float64 `json:"transfer_amount"`
	UserSubscriptionID *string `json:"user_subscription_id,omitempty"`
	TransferredAt      string  `json:"transferred_at"`
}

type CreditHistoryResult struct {
	StatusCode    rpc.StatusCode `json:"status_code"`
	CreditHistory []CreditEntry  `json:"credit_history"`
}

type DepositHistoryParams struct {
	V      string `json:"v,omitempty"`
	APIKey string `json:"api_key,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type DepositEntry struct {
	ID            string  `json:"id"`
	Amount        float64 `json:"amount"`
	TransferredAt string  `json:"transferred_at"`
}

type DepositHistoryResult struct {
	StatusCode     rpc.StatusCode `json:"status_code"`
	DepositHistory []DepositEntry `json:"deposit_history"`
}

type ModifyCredentialsParams struct {
	V        string `json:"v,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Password string `json:"password"`
}

func statusOf(r *StatusResult) string { return string(r.StatusCode) }

// optionalStatus checks code only when the peer sent one.
func optionalStatus(code rpc.StatusCode, messages rpc.StatusMessages) error {
	if code == "" {
		return nil
	}
	return rpc.CheckStatus(string(code), messages)
}

var (
	listAirports = &rpc.Method[ListAirportsParams, ListAirportsResult]{
		Name: "list_airports",
	}

	getAPIKey = &rpc.Method[GetAPIKeyParams, GetAPIKeyResult]{
		Name:     "get_api_key",
		Messages: rpc.StatusMessages{"2000": "You are not logged in."},
	}

	listSubscriptions = &rpc.Method[ListSubscriptionsParams, ListSubscriptionsResult]{
		Name:          "list_subscriptions",
		Authenticated: true,
	}

	subscribe = &rpc.Method[SubscribeParams, SubscribeResult]{
		Name:          "subscribe",
		Authenticated: true,
		Status:        func(r *SubscribeResult) string { return string(r.StatusCode) },
		Messages: rpc.StatusMessages{
			"2000": "You are already subscribed for this route.",
			"2001": "You do not have enough credits for this subscription.",
		},
	}

	unsubscribe = &rpc.Method[UnsubscribeParams, StatusResult]{
		Name:          "unsubscribe",
		Authenticated: true,
		Status:        statusOf,
		Messages: rpc.StatusMessages{
			"2000": "There is no such subscription.",
			"2100": "There is no such subscription.",
			"2200": "You are not allowed to remove this subscription.",
		},
	}

	editSubscription = &rpc.Method[EditSubscriptionParams, StatusResult]{
		Name:          "edit_subscription",
		Authenticated: true,
		Messages: rpc.StatusMessages{
			"2000": "You are already subscribed for this route.",
			"2100": "Subscription input was not correct.",
			"2101": "Subscription input was not correct.",
		},
	}

	creditHistory = &rpc.Method[CreditHistoryParams, CreditHistoryResult]{
		Name:          "credit_history",
		Authenticated: true,
		Status:        func(r *CreditHistoryResult) string { return string(r.StatusCode) },
	}

	depositHistory = &rpc.Method[DepositHistoryParams, DepositHistoryResult]{
		Name:          "deposit_history",
		Authenticated: true,
		Status:        func(r *DepositHistoryResult) string { return string(r.StatusCode) },
	}

	modifyCredentials = &rpc.Method[ModifyCredentialsParams, StatusResult]{
		Name:          "modify_credentials",
		Authenticated: true,
		Status:        statusOf,
		Messages:      rpc.StatusMessages{"2000": "Failed to alter credentials."},
	}
)

func init() {
	getAPIKey.Post = func(s *rpc.Session, r *GetAPIKeyResult) error {
		if err := optionalStatus(r.StatusCode, getAPIKey.Messages); err != nil {
			return err
		}
		if r.APIKey == nil {
			s.APIKey().Clear()
			return nil
		}
		s.APIKey().Set(*r.APIKey)
		return nil
	}
	editSubscription.Post = func(_ *rpc.Session, r *StatusResult) error {
		return optionalStatus(r.StatusCode, editSubscription.Messages)
	}
}

// ListAirports fetches every known airport.
func (c *Client) ListAirports(ctx context.Context) *rpc.Future[ListAirportsResult] {
	return listAirports.Invoke(ctx, c.session, c.protocol, ListAirportsParams{})
}

// GetAPIKey fetches the key of the logged in user and stores it in the
// session, where authenticated calls pick it up.
func (c *Client) GetAPIKey(ctx context.Context) *rpc.Future[GetAPIKeyResult] {
	return getAPIKey.Invoke(ctx, c.session, c.protocol, GetAPIKeyParams{})
}

func (c *Client) ListSubscriptions(ctx context.Context) *rpc.Future[ListSubscriptionsResult] {
	return listSubscriptions.Invoke(ctx, c.session, c.protocol, ListSubscriptionsParams{})
}

func (c *Client) Subscribe(ctx context.Context, p SubscribeParams) *rpc.Future[SubscribeResult] {
	return subscribe.Invoke(ctx, c.session, c.protocol, p)
}

func (c *Client) Unsubscribe(ctx context.Context, p UnsubscribeParams) *rpc.Future[StatusResult] {
	return unsubscribe.Invoke(ctx, c.session, c.protocol, p)
}

func (c *Client) EditSubscription(ctx context.Context, p EditSubscriptionParams) *rpc.Future[StatusResult] {
	return editSubscription.Invoke(ctx, c.session, c.protocol, p)
}

func (c *Client) CreditHistory(ctx context.Context, p CreditHistoryParams) *rpc.Future[CreditHistoryResult] {
	return creditHistory.Invoke(ctx, c.session, c.protocol, p)
}

func (c *Client) DepositHistory(ctx context.Context, p DepositHistoryParams) *rpc.Future[DepositHistoryResult] {
	return depositHistory.Invoke(ctx, c.session, c.protocol, p)
}

// ModifyCredentials sets a new password. Passwords shorter than
// MinPasswordLength are rejected locally with a user error.
func (c *Client) ModifyCredentials(ctx context.Context, p ModifyCredentialsParams) *rpc.Future[StatusResult] {
	if utf8.RuneCountInString(p.Password) < MinPasswordLength {
		return rpc.Reject[StatusResult](c.session, rpc.User("Password is too short", "user entered a short password"))
	}
	return modifyCredentials.Invoke(ctx, c.session, c.protocol, p)
}
