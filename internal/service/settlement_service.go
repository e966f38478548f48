package service

import (
	"context"
	"fmt"
	"time"

	"crypta-wallet/internal/core/domain"
	"crypta-wallet/internal/core/ports"
	"crypta-wallet/pkg/apperror"
	"crypta-wallet/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// swapPlaces is the fixed precision of the destination quantity of a swap.
const swapPlaces = 2

// SettlementServiceImpl implements ports.SettlementService.
//
// Every operation follows the same pipeline: resolve the wallet, validate
// quantity and currency, resolve price(s), then inside one atomic unit lock
// the wallet row, check sufficiency, write holdings and append the record.
type SettlementServiceImpl struct {
	walletRepo  ports.WalletRepository
	holdingRepo ports.HoldingRepository
	txRepo      ports.TransactionRepository
	prices      ports.PriceReader
	transactor  ports.DBTransactor
	supported   SupportedSet
	metrics     *metrics.Metrics
	log         zerolog.Logger
	now         func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	walletRepo ports.WalletRepository,
	holdingRepo ports.HoldingRepository,
	txRepo ports.TransactionRepository,
	prices ports.PriceReader,
	transactor ports.DBTransactor,
	supported SupportedSet,
	m *metrics.Metrics,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		walletRepo:  walletRepo,
		holdingRepo: holdingRepo,
		txRepo:      txRepo,
		prices:      prices,
		transactor:  transactor,
		supported:   supported,
		metrics:     m,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Purchase buys req.Quantity of req.Symbol with cash at the current price.
func (s *SettlementServiceImpl) Purchase(ctx context.Context, req ports.TradeRequest) (result *domain.Settlement, err error) {
	defer s.observe(domain.TransactionKindPurchase, time.Now(), &err)

	symbol := domain.NormalizeSymbol(req.Symbol)
	if _, err := s.resolveWallet(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := s.validateTrade(symbol, req.Quantity); err != nil {
		return nil, err
	}
	quote, err := s.price(ctx, symbol)
	if err != nil {
		return nil, err
	}

	price := quote.Price
	cost := req.Quantity.Mul(price)

	var record *domain.Transaction
	var cashAfter decimal.Decimal
	err = s.transactor.RunAtomic(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		cash, err := s.holdingRepo.Get(ctx, tx, wallet.ID, domain.CashSymbol)
		if err != nil {
			return fmt.Errorf("read cash holding: %w", err)
		}
		if err := ValidateCash(cash, cost); err != nil {
			return err
		}
		held, err := s.holdingRepo.Get(ctx, tx, wallet.ID, symbol)
		if err != nil {
			return fmt.Errorf("read %s holding: %w", symbol, err)
		}

		cashAfter = cash.Quantity.Sub(cost)
		if err := s.holdingRepo.Upsert(ctx, tx, wallet.ID, symbol, quantityOf(held).Add(req.Quantity)); err != nil {
			return fmt.Errorf("credit %s: %w", symbol, err)
		}
		if err := s.holdingRepo.Upsert(ctx, tx, wallet.ID, domain.CashSymbol, cashAfter); err != nil {
			return fmt.Errorf("debit cash: %w", err)
		}

		record = domain.NewPurchase(wallet.ID, symbol, req.Quantity, price, s.now())
		if err := s.txRepo.Append(ctx, tx, record); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, settlementError(err)
	}

	s.log.Info().
		Str("tx_id", record.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("symbol", symbol).
		Str("quantity", req.Quantity.String()).
		Str("price", price.String()).
		Msg("purchase settled")

	return domain.SettlementOf(record, cashAfter), nil
}

// Sale sells req.Quantity of req.Symbol for cash at the current price.
func (s *SettlementServiceImpl) Sale(ctx context.Context, req ports.TradeRequest) (result *domain.Settlement, err error) {
	defer s.observe(domain.TransactionKindSale, time.Now(), &err)

	symbol := domain.NormalizeSymbol(req.Symbol)
	if _, err := s.resolveWallet(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := s.validateTrade(symbol, req.Quantity); err != nil {
		return nil, err
	}
	quote, err := s.price(ctx, symbol)
	if err != nil {
		return nil, err
	}

	price := quote.Price
	proceeds := req.Quantity.Mul(price)

	var record *domain.Transaction
	var cashAfter decimal.Decimal
	err = s.transactor.RunAtomic(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		held, err := s.holdingRepo.Get(ctx, tx, wallet.ID, symbol)
		if err != nil {
			return fmt.Errorf("read %s holding: %w", symbol, err)
		}
		if err := ValidateHolding(held, symbol, req.Quantity); err != nil {
			return err
		}
		cash, err := s.holdingRepo.Get(ctx, tx, wallet.ID, domain.CashSymbol)
		if err != nil {
			return fmt.Errorf("read cash holding: %w", err)
		}

		cashAfter = quantityOf(cash).Add(proceeds)
		if err := s.holdingRepo.Upsert(ctx, tx, wallet.ID, symbol, held.Quantity.Sub(req.Quantity)); err != nil {
			return fmt.Errorf("debit %s: %w", symbol, err)
		}
		if err := s.holdingRepo.Upsert(ctx, tx, wallet.ID, domain.CashSymbol, cashAfter); err != nil {
			return fmt.Errorf("credit cash: %w", err)
		}

		record = domain.NewSale(wallet.ID, symbol, req.Quantity, price, s.now())
		if err := s.txRepo.Append(ctx, tx, record); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, settlementError(err)
	}

	s.log.Info().
		Str("tx_id", record.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("symbol", symbol).
		Str("quantity", req.Quantity.String()).
		Str("price", price.String()).
		Msg("sale settled")

	return domain.SettlementOf(record, cashAfter), nil
}

// Swap exchanges req.Quantity of req.From for req.To at the ratio of their
// current prices, rounded to two decimal places. Cash may be either leg.
func (s *SettlementServiceImpl) Swap(ctx context.Context, req ports.SwapRequest) (result *domain.Settlement, err error) {
	defer s.observe(domain.TransactionKindSwap, time.Now(), &err)

	from := domain.NormalizeSymbol(req.From)
	to := domain.NormalizeSymbol(req.To)
	if _, err := s.resolveWallet(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := ValidateQuantity(req.Quantity); err != nil {
		return nil, err
	}
	if err := ValidateSupported(s.supported, from); err != nil {
		return nil, err
	}
	if err := ValidateSupported(s.supported, to); err != nil {
		return nil, err
	}
	if err := ValidateDistinct(from, to); err != nil {
		return nil, err
	}

	quoteA, err := s.price(ctx, from)
	if err != nil {
		return nil, err
	}
	quoteB, err := s.price(ctx, to)
	if err != nil {
		return nil, err
	}

	quantityB := SwapQuantity(req.Quantity, quoteA.Price, quoteB.Price)
	if !quantityB.IsPositive() {
		return nil, apperror.ErrInvalidQuantity()
	}

	var record *domain.Transaction
	var cashAfter decimal.Decimal
	err = s.transactor.RunAtomic(ctx, func(ctx context.Context, tx pgx.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		source, err := s.holdingRepo.Get(ctx, tx, wallet.ID, from)
		if err != nil {
			return fmt.Errorf("read %s holding: %w", from, err)
		}
		if err := ValidateHolding(source, from, req.Quantity); err != nil {
			return err
		}
		dest, err := s.holdingRepo.Get(ctx, tx, wallet.ID, to)
		if err != nil {
			return fmt.Errorf("read %s holding: %w", to, err)
		}

		if err := s.holdingRepo.Upsert(ctx, tx, wallet.ID, from, source.Quantity.Sub(req.Quantity)); err != nil {
			return fmt.Errorf("debit %s: %w", from, err)
		}
		if err := s.holdingRepo.Upsert(ctx, tx, wallet.ID, to, quantityOf(dest).Add(quantityB)); err != nil {
			return fmt.Errorf("credit %s: %w", to, err)
		}

		record = domain.NewSwap(wallet.ID, from, req.Quantity, to, quantityB, s.now())
		if err := s.txRepo.Append(ctx, tx, record); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		cash, err := s.holdingRepo.Get(ctx, tx, wallet.ID, domain.CashSymbol)
		if err != nil {
			return fmt.Errorf("read cash holding: %w", err)
		}
		cashAfter = quantityOf(cash)
		return nil
	})
	if err != nil {
		return nil, settlementError(err)
	}

	s.log.Info().
		Str("tx_id", record.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("from", from).
		Str("to", to).
		Str("quantity", req.Quantity.String()).
		Str("quantity_b", quantityB.String()).
		Msg("swap settled")

	return domain.SettlementOf(record, cashAfter), nil
}

// SwapQuantity returns round(qty * priceA / priceB, 2).
func SwapQuantity(qty, priceA, priceB decimal.Decimal) decimal.Decimal {
	return qty.Mul(priceA).Div(priceB).Round(swapPlaces)
}

func (s *SettlementServiceImpl) resolveWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrSettlementFailed(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

func (s *SettlementServiceImpl) lockWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

func (s *SettlementServiceImpl) validateTrade(symbol string, qty decimal.Decimal) error {
	if err := ValidateQuantity(qty); err != nil {
		return err
	}
	if err := ValidateSupported(s.supported, symbol); err != nil {
		return err
	}
	return ValidateTradable(symbol)
}

func (s *SettlementServiceImpl) price(ctx context.Context, symbol string) (*domain.PriceQuote, error) {
	quote, err := s.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		if apperror.CodeOf(err) != "" {
			return nil, err
		}
		return nil, apperror.ErrPriceUnavailable(symbol, err)
	}
	if quote == nil || !quote.Price.IsPositive() {
		return nil, apperror.ErrPriceUnavailable(symbol, fmt.Errorf("no positive price"))
	}
	return quote, nil
}

func (s *SettlementServiceImpl) observe(kind domain.TransactionKind, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = apperror.CodeOf(*errp)
		s.log.Warn().Err(*errp).Str("kind", string(kind)).Str("code", outcome).Msg("settlement rejected")
	}
	s.metrics.ObserveSettlement(string(kind), outcome, time.Since(start))
}

// settlementError keeps typed ledger errors raised inside the atomic unit and
// reports everything else as SettlementFailed.
func settlementError(err error) error {
	if apperror.CodeOf(err) != "" {
		return err
	}
	return apperror.ErrSettlementFailed(err)
}

func quantityOf(h *domain.Holding) decimal.Decimal {
	if h == nil {
		return decimal.Zero
	}
	return h.Quantity
}
