package lib

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

// CreatePayoutAccount registers an express connected account for the
// professional and returns the account id with a hosted onboarding link. The
// caller must not assume the account exists on error.
func CreatePayoutAccount(professionalId uint, name string, email string, country string) (string, string, error) {
	sc := GetStripeClient()
	acc, err := sc.V1Accounts.Create(context.Background(), &stripe.AccountCreateParams{
		BusinessProfile: &stripe.AccountCreateBusinessProfileParams{
			Name:         stripe.String(name),
			SupportEmail: stripe.String(email),
		},
		BusinessType: stripe.String("individual"),
		Type:         stripe.String("express"),
		Country:      stripe.String(country),
		Email:        stripe.String(email),
		Metadata:     map[string]string{"professionalId": fmt.Sprintf("%d", professionalId)},
		Capabilities: &stripe.AccountCreateCapabilitiesParams{
			CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	})
	if err != nil {
		log.Printf("Error creating payout account for professional [%d]: %s\n", professionalId, err.Error())
		return "", "", err
	}
	link, err := sc.V1AccountLinks.Create(context.Background(), &stripe.AccountLinkCreateParams{
		Account:    stripe.String(acc.ID),
		Type:       stripe.String("account_onboarding"),
		ReturnURL:  stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/dashboard")),
		RefreshURL: stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/callback/account/refresh")),
	})
	if err != nil {
		log.Printf("Error creating onboarding link for account %s: %s\n", acc.ID, err.Error())
		return acc.ID, "", err
	}
	return acc.ID, link.URL, nil
}

// CreateAccountSession returns a client secret for embedding the payouts
// dashboard of a connected account.
func CreateAccountSession(accountId string) (string, error) {
	sc := GetStripeClient()
	session, err := sc.V1AccountSessions.Create(context.Background(), &stripe.AccountSessionCreateParams{
		Account: stripe.String(accountId),
		Components: &stripe.AccountSessionCreateComponentsParams{
			AccountOnboarding: &stripe.AccountSessionCreateComponentsAccountOnboardingParams{
				Enabled: stripe.Bool(true),
			},
			Payouts: &stripe.AccountSessionCreateComponentsPayoutsParams{
				Enabled: stripe.Bool(true),
			},
		},
	})
	if err != nil {
		log.Printf("Error creating account session for %s: %s\n", accountId, err.Error())
		return "", err
	}
	return session.ClientSecret, nil
}

type ChargeParams struct {
	BookingID       uint
	Amount          int64
	FeeAmount       int64
	Currency        string
	PaymentMethodID string
	PayoutAccountID string
	IdempotencyKey  string
}

type ChargeResult struct {
	IntentID     string
	ClientSecret string
	Status       stripe.PaymentIntentStatus
}

// ChargeForBooking issues a destination-charge PaymentIntent: the full amount
// is charged, the net is transferred to the payout account and the platform
// retains FeeAmount. The booking id rides in metadata so the webhook path can
// reconcile without trusting request bodies.
func ChargeForBooking(ctx context.Context, params *ChargeParams) (*ChargeResult, error) {
	sc := GetStripeClient()
	createParams := &stripe.PaymentIntentCreateParams{
		Amount:               stripe.Int64(params.Amount),
		Currency:             stripe.String(params.Currency),
		PaymentMethod:        stripe.String(params.PaymentMethodID),
		Confirm:              stripe.Bool(true),
		ApplicationFeeAmount: stripe.Int64(params.FeeAmount),
		TransferData: &stripe.PaymentIntentCreateTransferDataParams{
			Destination: stripe.String(params.PayoutAccountID),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: map[string]string{
			"bookingId": fmt.Sprintf("%d", params.BookingID),
		},
	}
	if params.IdempotencyKey != "" {
		createParams.Params = stripe.Params{
			IdempotencyKey: stripe.String(params.IdempotencyKey),
		}
	}
	pi, err := sc.V1PaymentIntents.Create(ctx, createParams)
	if err != nil {
		log.Printf("[Stripe] Error creating PaymentIntent for booking [%d]: %s\n", params.BookingID, err.Error())
		return nil, err
	}
	log.Printf("[PaymentIntent] ID: %s %s\n", pi.ID, pi.Status)
	return &ChargeResult{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       pi.Status,
	}, nil
}

// PayoutAccountComplete mirrors the processor's readiness flags: the account
// can take charges and payouts and has no outstanding requirements.
func PayoutAccountComplete(acc *stripe.Account) bool {
	if acc.Requirements != nil && len(acc.Requirements.Errors) > 0 {
		return false
	}
	return acc.ChargesEnabled &&
		acc.PayoutsEnabled &&
		acc.DetailsSubmitted
}
