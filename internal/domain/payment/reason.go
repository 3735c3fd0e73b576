package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/Priya8975/marketplace/internal/domain"
)

// WorkItem is an issue or pull request a payment rewards.
type WorkItem struct {
	RepoID      domain.GithubRepoID      `json:"repo_id"`
	IssueNumber domain.GithubIssueNumber `json:"issue_number"`
}

// Reason lists the work items behind a payment request.
type Reason struct {
	WorkItems []WorkItem `json:"work_items"`
}

// Duration is encoded as whole seconds.
type Duration time.Duration

// MaxHours is the largest hour count a Duration can hold.
const MaxHours = math.MaxInt64 / int64(time.Hour)

// Hours converts h to a Duration. h must be within [0, MaxHours].
func Hours(h int) Duration { return Duration(time.Duration(h) * time.Hour) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(time.Duration(d) / time.Second))
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration seconds: %w", err)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Network is a blockchain network a payment can be sent on.
type Network string

const Ethereum Network = "Ethereum"

// OnChainReceipt proves a payment made by a blockchain transaction.
type OnChainReceipt struct {
	Network          Network `json:"network"`
	RecipientAddress string  `json:"recipient_address"`
	RecipientENS     string  `json:"recipient_ens,omitempty"`
	TransactionHash  string  `json:"transaction_hash"`
}

// FiatReceipt proves a payment made by bank transfer.
type FiatReceipt struct {
	RecipientIBAN        string `json:"recipient_iban"`
	TransactionReference string `json:"transaction_reference"`
}

// Receipt holds exactly one of OnChain or Fiat.
type Receipt struct {
	OnChain *OnChainReceipt `json:"on_chain_payment,omitempty"`
	Fiat    *FiatReceipt    `json:"fiat_payment,omitempty"`
}

var (
	ethereumAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	transactionHash = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)
)

// Validate checks the receipt shape and the on-chain identifiers.
func (r Receipt) Validate() error {
	switch {
	case r.OnChain != nil && r.Fiat != nil:
		return domain.InvalidInputs(errors.New("receipt must be either on-chain or fiat"))
	case r.OnChain != nil:
		if !ethereumAddress.MatchString(r.OnChain.RecipientAddress) {
			return domain.InvalidInputs(fmt.Errorf("invalid recipient address %q", r.OnChain.RecipientAddress))
		}
		if !transactionHash.MatchString(r.OnChain.TransactionHash) {
			return domain.InvalidInputs(fmt.Errorf("invalid transaction hash %q", r.OnChain.TransactionHash))
		}
		return nil
	case r.Fiat != nil:
		if r.Fiat.RecipientIBAN == "" || r.Fiat.TransactionReference == "" {
			return domain.InvalidInputs(errors.New("fiat receipt needs an iban and a transaction reference"))
		}
		return nil
	default:
		return domain.InvalidInputs(errors.New("receipt is empty"))
	}
}
