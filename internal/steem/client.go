// Package steem talks to a Steem node over condenser_api JSON-RPC and signs
// transactions in the node's binary form.
package steem

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

var log = logging.Logger("steem")

const (
	DefaultNodeURL = "https://api.steemit.com"
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2
)

type ClientCfg struct {
	NodeURL string        `env:"NODE_URL" envDefault:"https://api.steemit.com"`
	Timeout time.Duration `env:"RPC_TIMEOUT" envDefault:"10s"`
	Retries int           `env:"RPC_RETRIES" envDefault:"2"`
}

// Client implements domain.Ledger against a single node. Calls go through a
// circuit breaker so a dead node fails fast instead of stalling every tick.
type Client struct {
	url     string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	ids     uint64
}

func NewClient(cfg ClientCfg) *Client {
	if cfg.NodeURL == "" {
		cfg.NodeURL = DefaultNodeURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetHeader("Content-Type", "application/json")

	return &Client{
		url:  cfg.NodeURL,
		http: httpClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "steem-rpc",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: nodeReachable,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnw("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// nodeReachable treats a node-side rejection as a healthy round trip; only
// transport and decode failures count against the breaker.
func nodeReachable(err error) bool {
	var rpcErr *rpcError

	return err == nil || errors.As(err, &rpcErr)
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call invokes condenser_api.<method> and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	method = "condenser_api." + method
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var resp rpcResponse
		httpResp, err := c.http.R().
			SetContext(ctx).
			SetBody(rpcRequest{
				JSONRPC: "2.0",
				ID:      atomic.AddUint64(&c.ids, 1),
				Method:  method,
				Params:  params,
			}).
			SetResult(&resp).
			Post(c.url)
		if err != nil {
			return nil, err
		}
		if httpResp.IsError() {
			return nil, errors.Errorf("http status %s", httpResp.Status())
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		if out == nil {
			return nil, nil
		}

		return nil, errors.Wrap(json.Unmarshal(resp.Result, out), "decode result")
	})
	if err != nil {
		return &domain.CollaboratorError{Call: method, Err: err}
	}

	return nil
}

type globalProperties struct {
	HeadBlockNumber uint32 `json:"head_block_number"`
	HeadBlockID     string `json:"head_block_id"`
}

func (c *Client) ChainHead(ctx context.Context) (domain.ChainHead, error) {
	var props globalProperties
	if err := c.call(ctx, "get_dynamic_global_properties", []any{}, &props); err != nil {
		return domain.ChainHead{}, err
	}

	return domain.ChainHead{BlockNumber: props.HeadBlockNumber, BlockID: props.HeadBlockID}, nil
}

type orderBookEntry struct {
	RealPrice string `json:"real_price"`
	SBD       int64  `json:"sbd"`
}

type orderBook struct {
	Asks []orderBookEntry `json:"asks"`
	Bids []orderBookEntry `json:"bids"`
}

// OrderBook returns asks by increasing price; depth is the SBD on offer.
func (c *Client) OrderBook(ctx context.Context, depth int) ([]domain.Ask, error) {
	var book orderBook
	if err := c.call(ctx, "get_order_book", []int{depth}, &book); err != nil {
		return nil, err
	}
	asks := make([]domain.Ask, 0, len(book.Asks))
	for i, entry := range book.Asks {
		price, err := decimal.NewFromString(entry.RealPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "ask %d price", i)
		}
		asks = append(asks, domain.Ask{
			Price: price,
			Depth: decimal.New(entry.SBD, -domain.AssetPrecision),
		})
	}

	return asks, nil
}

type account struct {
	Name                string `json:"name"`
	Balance             string `json:"balance"`
	SBDBalance          string `json:"sbd_balance"`
	PostingJSONMetadata string `json:"posting_json_metadata"`
}

func (c *Client) Account(ctx context.Context, name string) (domain.Account, error) {
	var accounts []account
	if err := c.call(ctx, "get_accounts", [][]string{{name}}, &accounts); err != nil {
		return domain.Account{}, err
	}
	if len(accounts) == 0 {
		return domain.Account{}, &domain.CollaboratorError{
			Call: "condenser_api.get_accounts",
			Err:  errors.Errorf("account %q not found", name),
		}
	}
	acc := accounts[0]
	native, err := domain.ParseAsset(acc.Balance)
	if err != nil {
		return domain.Account{}, errors.Wrapf(err, "balance of %s", name)
	}
	stable, err := domain.ParseAsset(acc.SBDBalance)
	if err != nil {
		return domain.Account{}, errors.Wrapf(err, "sbd balance of %s", name)
	}

	return domain.Account{
		Name:                acc.Name,
		Native:              native,
		Stable:              stable,
		PostingJSONMetadata: acc.PostingJSONMetadata,
	}, nil
}

type broadcastResult struct {
	ID       string `json:"id"`
	BlockNum uint32 `json:"block_num"`
}

func (c *Client) Submit(ctx context.Context, tx *domain.Transaction) (domain.Receipt, error) {
	var res broadcastResult
	if err := c.call(ctx, "broadcast_transaction_synchronous", []any{tx}, &res); err != nil {
		return domain.Receipt{}, err
	}
	log.Infow("transaction broadcast", "id", res.ID, "block", res.BlockNum, "operations", len(tx.Operations))

	return domain.Receipt{ID: res.ID, BlockNum: res.BlockNum}, nil
}
