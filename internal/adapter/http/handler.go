package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/delayguard/internal/app"
	"github.com/neomorfeo/delayguard/internal/domain"
)

// CallerHeader carries the address the request acts as.
const CallerHeader = "X-Caller-Address"

const timeFormat = "2006-01-02T15:04:05Z"

// PolicyResponse is the API representation of a policy.
type PolicyResponse struct {
	ID              uint64 `json:"id" doc:"Policy ID"`
	Insured         string `json:"insured" doc:"Address of the policy holder"`
	ExpectedArrival uint64 `json:"expected_arrival" doc:"Expected arrival (unix seconds)"`
	ActualArrival   uint64 `json:"actual_arrival" doc:"Reported arrival (unix seconds, 0 if not delivered)"`
	ClaimedDays     uint64 `json:"claimed_days" doc:"Delay days already paid out"`
	Status          string `json:"status" doc:"Lifecycle state"`
	CreatedAt       string `json:"created_at" doc:"Purchase timestamp (ISO 8601)"`
	UpdatedAt       string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toPolicyResponse(p domain.Policy) PolicyResponse {
	return PolicyResponse{
		ID:              p.ID,
		Insured:         p.Insured.String(),
		ExpectedArrival: p.ExpectedArrival,
		ActualArrival:   p.ActualArrival,
		ClaimedDays:     p.ClaimedDays,
		Status:          p.Status.String(),
		CreatedAt:       p.CreatedAt.Format(timeFormat),
		UpdatedAt:       p.UpdatedAt.Format(timeFormat),
	}
}

// ConfigResponse is the API representation of the ledger configuration.
type ConfigResponse struct {
	Initialized   bool   `json:"initialized" doc:"Whether initialize has run"`
	Admin         string `json:"admin" doc:"Administrator address"`
	Token         string `json:"token" doc:"Escrow token address"`
	Escrow        string `json:"escrow" doc:"Address holding premiums and paying claims"`
	PremiumAmount string `json:"premium_amount" doc:"Premium per policy (base units)"`
	PayoutPerDay  string `json:"payout_per_day" doc:"Payout per delayed day (base units)"`
	MaxPayoutDays uint64 `json:"max_payout_days" doc:"Cap on paid days per policy"`
	NextPolicyID  uint64 `json:"next_policy_id" doc:"ID the next purchase receives"`
}

func toConfigResponse(cfg domain.Config, escrow domain.Address) ConfigResponse {
	return ConfigResponse{
		Initialized:   cfg.Initialized(),
		Admin:         cfg.Admin.String(),
		Token:         cfg.Token.String(),
		Escrow:        escrow.String(),
		PremiumAmount: cfg.PremiumAmount.String(),
		PayoutPerDay:  cfg.PayoutPerDay.String(),
		MaxPayoutDays: cfg.MaxPayoutDays,
		NextPolicyID:  cfg.NextPolicyID,
	}
}

// ClaimResponse describes a paid claim.
type ClaimResponse struct {
	PolicyID    uint64 `json:"policy_id" doc:"Policy ID"`
	Insured     string `json:"insured" doc:"Paid address"`
	DaysClaimed uint64 `json:"days_claimed" doc:"Days paid by this claim"`
	Amount      string `json:"amount" doc:"Amount paid (base units)"`
	ClaimedDays uint64 `json:"claimed_days" doc:"Total days paid on the policy"`
	Status      string `json:"status" doc:"Policy status after the claim"`
}

// BalanceResponse reports a token balance.
type BalanceResponse struct {
	Holder  string `json:"holder" doc:"Address"`
	Balance string `json:"balance" doc:"Balance (base units)"`
}

// ClaimableResponse reports what a claim would pay now.
type ClaimableResponse struct {
	PolicyID uint64 `json:"policy_id" doc:"Policy ID"`
	Days     uint64 `json:"days" doc:"Claimable days"`
	Amount   string `json:"amount" doc:"Claimable amount (base units)"`
}

// CallerInput identifies the caller of a state-changing request.
type CallerInput struct {
	Caller string `header:"X-Caller-Address" required:"false" doc:"Address the request acts as"`
}

func (in CallerInput) address() (domain.Address, error) {
	if in.Caller == "" {
		return domain.Address{}, huma.Error401Unauthorized("missing " + CallerHeader + " header")
	}
	addr, err := domain.ParseAddress(in.Caller)
	if err != nil {
		return domain.Address{}, huma.Error401Unauthorized("malformed " + CallerHeader + " header")
	}
	return addr, nil
}

// --- Ledger administration ---

type InitializeInput struct {
	CallerInput
	Body struct {
		Token string `json:"token" pattern:"^(0x)?[0-9a-fA-F]{40}$" doc:"Escrow token address"`
	}
}

type ConfigOutput struct {
	Body ConfigResponse
}

type GetConfigInput struct{}

type SetPricingInput struct {
	CallerInput
	Body struct {
		PremiumAmount string `json:"premium_amount" pattern:"^[0-9]+$" doc:"Premium per policy (base units)"`
		PayoutPerDay  string `json:"payout_per_day" pattern:"^[0-9]+$" doc:"Payout per delayed day (base units)"`
		MaxPayoutDays uint64 `json:"max_payout_days" minimum:"1" doc:"Cap on paid days per policy"`
	}
}

type SetAdminInput struct {
	CallerInput
	Body struct {
		Admin string `json:"admin" pattern:"^(0x)?[0-9a-fA-F]{40}$" doc:"New administrator address"`
	}
}

type WithdrawInput struct {
	CallerInput
	Body struct {
		To     string `json:"to" pattern:"^(0x)?[0-9a-fA-F]{40}$" doc:"Recipient address"`
		Amount string `json:"amount" pattern:"^[0-9]+$" doc:"Amount (base units)"`
	}
}

type BalanceOutput struct {
	Body BalanceResponse
}

type EscrowInput struct{}

// --- Policies ---

type BuyPolicyInput struct {
	CallerInput
	Body struct {
		ExpectedArrival uint64 `json:"expected_arrival" doc:"Expected arrival (unix seconds)"`
	}
}

type PolicyOutput struct {
	Body PolicyResponse
}

type GetPolicyInput struct {
	ID uint64 `path:"id" doc:"Policy ID"`
}

type ListPoliciesInput struct {
	Insured string `query:"insured" required:"false" doc:"Filter by policy holder"`
	Status  string `query:"status" required:"false" enum:"inactive,active,delayed,delivered" doc:"Filter by status"`
	Limit   int    `query:"limit" required:"false" default:"50" minimum:"0" doc:"Max results"`
	Offset  int    `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListPoliciesOutput struct {
	Body []PolicyResponse
}

type SetDelayInput struct {
	CallerInput
	ID   uint64 `path:"id" doc:"Policy ID"`
	Body struct {
		Delayed bool `json:"delayed" doc:"Whether the shipment is delayed"`
	}
}

type SetDeliveryInput struct {
	CallerInput
	ID   uint64 `path:"id" doc:"Policy ID"`
	Body struct {
		Delivered     bool   `json:"delivered" doc:"Whether the shipment arrived"`
		ActualArrival uint64 `json:"actual_arrival,omitempty" required:"false" doc:"Arrival (unix seconds), required when delivered"`
	}
}

type ClaimInput struct {
	CallerInput
	ID uint64 `path:"id" doc:"Policy ID"`
}

type ClaimOutput struct {
	Body ClaimResponse
}

type ClaimableOutput struct {
	Body ClaimableResponse
}

// Register adds all ledger API routes to the Huma API.
func Register(api huma.API, ledger *app.PolicyLedger) {
	registerLedger(api, ledger)
	registerPolicies(api, ledger)
}

func configOutput(ctx context.Context, ledger *app.PolicyLedger) (*ConfigOutput, error) {
	cfg, err := ledger.Config(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &ConfigOutput{Body: toConfigResponse(cfg, ledger.Escrow())}, nil
}

func registerLedger(api huma.API, ledger *app.PolicyLedger) {
	huma.Register(api, huma.Operation{
		OperationID: "initialize-ledger",
		Method:      http.MethodPost,
		Path:        "/api/v1/ledger/initialize",
		Summary:     "Bind the administrator and escrow token",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *InitializeInput) (*ConfigOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		token, err := domain.ParseAddress(input.Body.Token)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err := ledger.Initialize(ctx, caller, token); err != nil {
			return nil, toHumaError(err)
		}
		return configOutput(ctx, ledger)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ledger",
		Method:      http.MethodGet,
		Path:        "/api/v1/ledger",
		Summary:     "Get the ledger configuration",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, _ *GetConfigInput) (*ConfigOutput, error) {
		return configOutput(ctx, ledger)
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-pricing",
		Method:      http.MethodPut,
		Path:        "/api/v1/ledger/pricing",
		Summary:     "Replace the premium, payout rate and payout cap",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *SetPricingInput) (*ConfigOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		premium, err := domain.ParseAmount(input.Body.PremiumAmount)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		perDay, err := domain.ParseAmount(input.Body.PayoutPerDay)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		pricing := domain.Pricing{Premium: premium, PayoutPerDay: perDay, MaxPayoutDays: input.Body.MaxPayoutDays}
		if err := ledger.SetPricing(ctx, caller, pricing); err != nil {
			return nil, toHumaError(err)
		}
		return configOutput(ctx, ledger)
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-admin",
		Method:      http.MethodPut,
		Path:        "/api/v1/ledger/admin",
		Summary:     "Hand over the administrator role",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *SetAdminInput) (*ConfigOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		newAdmin, err := domain.ParseAddress(input.Body.Admin)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err := ledger.SetAdmin(ctx, caller, newAdmin); err != nil {
			return nil, toHumaError(err)
		}
		return configOutput(ctx, ledger)
	})

	huma.Register(api, huma.Operation{
		OperationID: "withdraw-tokens",
		Method:      http.MethodPost,
		Path:        "/api/v1/ledger/withdrawals",
		Summary:     "Move escrowed funds out",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, input *WithdrawInput) (*BalanceOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		to, err := domain.ParseAddress(input.Body.To)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		amount, err := domain.ParseAmount(input.Body.Amount)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err := ledger.WithdrawTokens(ctx, caller, to, amount); err != nil {
			return nil, toHumaError(err)
		}
		return escrowOutput(ctx, ledger)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-escrow",
		Method:      http.MethodGet,
		Path:        "/api/v1/ledger/escrow",
		Summary:     "Get the escrow balance",
		Tags:        []string{"Ledger"},
	}, func(ctx context.Context, _ *EscrowInput) (*BalanceOutput, error) {
		return escrowOutput(ctx, ledger)
	})
}

func escrowOutput(ctx context.Context, ledger *app.PolicyLedger) (*BalanceOutput, error) {
	balance, err := ledger.EscrowBalance(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &BalanceOutput{Body: BalanceResponse{Holder: ledger.Escrow().String(), Balance: balance.String()}}, nil
}

func registerPolicies(api huma.API, ledger *app.PolicyLedger) {
	huma.Register(api, huma.Operation{
		OperationID:   "buy-policy",
		Method:        http.MethodPost,
		Path:          "/api/v1/policies",
		Summary:       "Buy a policy for a shipment",
		Tags:          []string{"Policies"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *BuyPolicyInput) (*PolicyOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		id, err := ledger.BuyPolicy(ctx, caller, input.Body.ExpectedArrival)
		if err != nil {
			return nil, toHumaError(err)
		}
		p, err := ledger.GetPolicy(ctx, id)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PolicyOutput{Body: toPolicyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-policy",
		Method:      http.MethodGet,
		Path:        "/api/v1/policies/{id}",
		Summary:     "Get a policy by ID",
		Tags:        []string{"Policies"},
	}, func(ctx context.Context, input *GetPolicyInput) (*PolicyOutput, error) {
		p, err := ledger.GetPolicy(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PolicyOutput{Body: toPolicyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-policies",
		Method:      http.MethodGet,
		Path:        "/api/v1/policies",
		Summary:     "List policies",
		Tags:        []string{"Policies"},
	}, func(ctx context.Context, input *ListPoliciesInput) (*ListPoliciesOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Insured != "" {
			insured, err := domain.ParseAddress(input.Insured)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			filter.Insured = &insured
		}
		if input.Status != "" {
			s, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			filter.Status = &s
		}

		policies, err := ledger.ListPolicies(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]PolicyResponse, len(policies))
		for i, p := range policies {
			resp[i] = toPolicyResponse(p)
		}
		return &ListPoliciesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-delay-status",
		Method:      http.MethodPut,
		Path:        "/api/v1/policies/{id}/delay",
		Summary:     "Report whether a shipment is delayed",
		Tags:        []string{"Policies"},
	}, func(ctx context.Context, input *SetDelayInput) (*PolicyOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		p, err := ledger.SetDelayedStatus(ctx, caller, input.ID, input.Body.Delayed)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PolicyOutput{Body: toPolicyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-delivery-status",
		Method:      http.MethodPut,
		Path:        "/api/v1/policies/{id}/delivery",
		Summary:     "Report a delivery or clear one",
		Tags:        []string{"Policies"},
	}, func(ctx context.Context, input *SetDeliveryInput) (*PolicyOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		p, err := ledger.SetDeliveryStatus(ctx, caller, input.ID, input.Body.Delivered, input.Body.ActualArrival)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PolicyOutput{Body: toPolicyResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-policy",
		Method:      http.MethodPost,
		Path:        "/api/v1/policies/{id}/claims",
		Summary:     "Claim the accrued delay payout",
		Tags:        []string{"Policies"},
	}, func(ctx context.Context, input *ClaimInput) (*ClaimOutput, error) {
		caller, err := input.address()
		if err != nil {
			return nil, err
		}
		r, err := ledger.Claim(ctx, caller, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimOutput{Body: ClaimResponse{
			PolicyID:    r.PolicyID,
			Insured:     r.Insured.String(),
			DaysClaimed: r.DaysClaimed,
			Amount:      r.Amount.String(),
			ClaimedDays: r.ClaimedDays,
			Status:      r.Status.String(),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-claimable",
		Method:      http.MethodGet,
		Path:        "/api/v1/policies/{id}/claimable",
		Summary:     "Get what a claim would pay now",
		Tags:        []string{"Policies"},
	}, func(ctx context.Context, input *GetPolicyInput) (*ClaimableOutput, error) {
		days, amount, err := ledger.ClaimableAmount(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClaimableOutput{Body: ClaimableResponse{PolicyID: input.ID, Days: days, Amount: amount.String()}}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, domain.ErrPolicyNotFound):
		return huma.Error404NotFound("policy not found")
	case errors.Is(err, domain.ErrNotInitialized):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, domain.ErrTransferFailed):
		return huma.Error502BadGateway(err.Error())
	case errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrNothingToClaim),
		errors.Is(err, domain.ErrReentrancy):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInsufficientFunds):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
