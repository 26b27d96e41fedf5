package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/subscription"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/infra/httpclient"
)

var ErrNotConfigured = errors.New("stripe is not configured")

type Mode string

const (
	ModeSubscription Mode = "subscription"
	ModePayment      Mode = "payment"
)

type CheckoutParams struct {
	Mode          Mode
	CustomerID    string
	CustomerEmail string
	Currency      string
	ProductName   string
	Description   string
	UnitAmount    int64
	Recurring     bool
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Client adapts the Stripe API to the billing operations the service needs.
type Client struct {
	firstCustomer     func(*stripe.CustomerListParams) (*stripe.Customer, error)
	firstSubscription func(*stripe.SubscriptionListParams) (*stripe.Subscription, error)
	getPrice          func(string, *stripe.PriceParams) (*stripe.Price, error)
	newCheckout       func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	newPortal         func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

func NewClient(secretKey string) *Client {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return &Client{}
	}

	backend := stripe.GetBackend(stripe.APIBackend)
	customers := &customer.Client{B: backend, Key: key}
	subscriptions := &subscription.Client{B: backend, Key: key}
	prices := &price.Client{B: backend, Key: key}
	checkouts := &checkoutsession.Client{B: backend, Key: key}
	portals := &portalsession.Client{B: backend, Key: key}

	return &Client{
		firstCustomer: func(params *stripe.CustomerListParams) (*stripe.Customer, error) {
			it := customers.List(params)
			if it.Next() {
				return it.Customer(), nil
			}
			return nil, it.Err()
		},
		firstSubscription: func(params *stripe.SubscriptionListParams) (*stripe.Subscription, error) {
			it := subscriptions.List(params)
			if it.Next() {
				return it.Subscription(), nil
			}
			return nil, it.Err()
		},
		getPrice:    prices.Get,
		newCheckout: checkouts.New,
		newPortal:   portals.New,
	}
}

func (c *Client) configured() bool {
	return c != nil && c.firstCustomer != nil
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (model.BillingCustomer, bool, error) {
	if !c.configured() {
		return model.BillingCustomer{}, false, wrap("find customer", ErrNotConfigured)
	}

	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	cust, err := c.firstCustomer(params)
	if err != nil {
		return model.BillingCustomer{}, false, wrap("find customer", err)
	}
	if cust == nil {
		return model.BillingCustomer{}, false, nil
	}
	return model.BillingCustomer{ID: cust.ID, Email: cust.Email}, true, nil
}

func (c *Client) ActiveSubscription(ctx context.Context, customerID string) (model.BillingSubscription, bool, error) {
	if !c.configured() {
		return model.BillingSubscription{}, false, wrap("list subscriptions", ErrNotConfigured)
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	sub, err := c.firstSubscription(params)
	if err != nil {
		return model.BillingSubscription{}, false, wrap("list subscriptions", err)
	}
	if sub == nil {
		return model.BillingSubscription{}, false, nil
	}

	out, err := convertSubscription(sub)
	if err != nil {
		return model.BillingSubscription{}, false, wrap("list subscriptions", err)
	}
	return out, true, nil
}

func (c *Client) PriceAmount(ctx context.Context, priceID string) (int64, error) {
	if !c.configured() {
		return 0, wrap("retrieve price", ErrNotConfigured)
	}

	params := &stripe.PriceParams{}
	params.Context = ctx

	p, err := c.getPrice(priceID, params)
	if err != nil {
		return 0, wrap("retrieve price", err)
	}
	return p.UnitAmount, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutParams) (string, error) {
	if !c.configured() {
		return "", wrap("create checkout session", ErrNotConfigured)
	}

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency: stripe.String(in.Currency),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(in.ProductName),
		},
		UnitAmount: stripe.Int64(in.UnitAmount),
	}
	if in.Description != "" {
		priceData.ProductData.Description = stripe.String(in.Description)
	}
	if in.Recurring {
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}

	mode := stripe.CheckoutSessionModeSubscription
	if in.Mode == ModePayment {
		mode = stripe.CheckoutSessionModePayment
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(1),
			},
		},
		Metadata: in.Metadata,
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	params.Context = ctx

	session, err := c.newCheckout(params)
	if err != nil {
		return "", wrap("create checkout session", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", wrap("create checkout session", fmt.Errorf("stripe returned empty checkout URL"))
	}
	return strings.TrimSpace(session.URL), nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if !c.configured() {
		return "", wrap("create portal session", ErrNotConfigured)
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := c.newPortal(params)
	if err != nil {
		return "", wrap("create portal session", err)
	}
	if session == nil || session.URL == "" {
		return "", wrap("create portal session", fmt.Errorf("stripe returned empty portal URL"))
	}
	return session.URL, nil
}

// convertSubscription reads the billing period from the first item, which is
// where the API reports it.
func convertSubscription(sub *stripe.Subscription) (model.BillingSubscription, error) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return model.BillingSubscription{}, fmt.Errorf("subscription %s has no items", sub.ID)
	}
	item := sub.Items.Data[0]

	out := model.BillingSubscription{
		ID:          sub.ID,
		PeriodStart: time.Unix(item.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:   time.Unix(item.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if item.Price != nil {
		out.PriceID = item.Price.ID
		out.UnitAmount = item.Price.UnitAmount
	}
	if out.PriceID == "" {
		return model.BillingSubscription{}, fmt.Errorf("subscription %s has no price", sub.ID)
	}
	return out, nil
}

func wrap(op string, err error) error {
	reqErr := &httpclient.RequestError{Op: "stripe " + op, Err: err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		reqErr.StatusCode = stripeErr.HTTPStatusCode
		reqErr.Message = stripeErr.Msg
	}
	return reqErr
}
