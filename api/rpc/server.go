package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"percolator/internal/common"
	"percolator/internal/router"
	"percolator/internal/slab"
)

// Server adapts a set of Slab engines and one Router to the hand-wired
// ServiceDesc below, mirroring how UmarFarooq-MP-Loki's grpcserver.Server
// wraps a single domain service per RPC method.
type Server struct {
	Router *router.Router
	slabs  map[common.SlabID]*slab.Engine
}

// NewServer returns a Server routing requests across the given slabs.
func NewServer(r *router.Router, slabs map[common.SlabID]*slab.Engine) *Server {
	return &Server{Router: r, slabs: slabs}
}

func (s *Server) engineFor(slabID string) (*slab.Engine, error) {
	id, err := uuid.Parse(slabID)
	if err != nil {
		return nil, fmt.Errorf("invalid slab_id %q: %w", slabID, err)
	}
	e, ok := s.slabs[id]
	if !ok {
		return nil, fmt.Errorf("unknown slab_id %q", slabID)
	}
	return e, nil
}

func bigFromString(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func toHash32(b []byte) ([32]byte, error) {
	var h [32]byte
	if len(b) != 32 {
		return h, fmt.Errorf("commitment_hash must be 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

func toSalt16(b []byte) ([16]byte, error) {
	var salt [16]byte
	if len(b) != 16 {
		return salt, fmt.Errorf("salt16 must be 16 bytes, got %d", len(b))
	}
	copy(salt[:], b)
	return salt, nil
}

func errResponse(cErr *common.Error) error {
	if cErr == nil {
		return nil
	}
	return fmt.Errorf("percolator: code=%d: %s", cErr.Code, cErr.Message)
}

// Reserve implements spec.md §6.1's reserve.
func (s *Server) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error) {
	e, err := s.engineFor(req.SlabID)
	if err != nil {
		return nil, err
	}
	hash, err := toHash32(req.CommitmentHash)
	if err != nil {
		return nil, err
	}
	res, cErr := e.Reserve(req.AccountIdx, req.InstrumentIdx, common.Side(req.Side), req.Qty, req.LimitPx, req.TTLMs, hash, req.RouteID)
	if cErr != nil {
		return nil, errResponse(cErr)
	}
	return &ReserveResponse{
		HoldID:    res.HoldID,
		VWAPPx:    res.VWAPPx,
		WorstPx:   res.WorstPx,
		MaxCharge: res.MaxCharge.String(),
		ExpiryMs:  res.ExpiryMs,
		BookSeqno: res.BookSeqno,
	}, nil
}

// Commit implements spec.md §6.1's commit.
func (s *Server) Commit(ctx context.Context, req *CommitRequest) (*CommitResponse, error) {
	e, err := s.engineFor(req.SlabID)
	if err != nil {
		return nil, err
	}
	salt, err := toSalt16(req.Salt16)
	if err != nil {
		return nil, err
	}
	capRef, err := capRefFromDTO(req.CapRef)
	if err != nil {
		return nil, err
	}
	res, cErr := e.Commit(req.HoldID, capRef, salt)
	if cErr != nil {
		return nil, errResponse(cErr)
	}
	return &CommitResponse{
		TradeCount:  res.FilledQty,
		TotalCharge: res.TotalDebit.String(),
		AvgPrice:    res.AvgPrice,
	}, nil
}

func capRefFromDTO(dto CapRefDTO) (common.CapabilityRef, error) {
	scopeUser, err := uuid.Parse(dto.ScopeUser)
	if err != nil {
		return common.CapabilityRef{}, fmt.Errorf("invalid scope_user: %w", err)
	}
	scopeSlab, err := uuid.Parse(dto.ScopeSlab)
	if err != nil {
		return common.CapabilityRef{}, fmt.Errorf("invalid scope_slab: %w", err)
	}
	mint, err := uuid.Parse(dto.Mint)
	if err != nil {
		return common.CapabilityRef{}, fmt.Errorf("invalid mint: %w", err)
	}
	amountMax, err := bigFromString(dto.AmountMax)
	if err != nil {
		return common.CapabilityRef{}, err
	}
	remaining, err := bigFromString(dto.Remaining)
	if err != nil {
		return common.CapabilityRef{}, err
	}
	return common.CapabilityRef{
		RouteID:   dto.RouteID,
		ScopeUser: scopeUser,
		ScopeSlab: scopeSlab,
		Mint:      mint,
		AmountMax: amountMax,
		Remaining: remaining,
		ExpiryTs:  dto.ExpiryTs,
		Nonce:     dto.Nonce,
		Burned:    dto.Burned,
	}, nil
}

// Cancel implements spec.md §6.1's cancel (idempotent on UnknownHold).
func (s *Server) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	e, err := s.engineFor(req.SlabID)
	if err != nil {
		return nil, err
	}
	cErr := e.Cancel(req.HoldID)
	if cErr != nil && cErr.Code != common.UnknownHold {
		return nil, errResponse(cErr)
	}
	return &CancelResponse{Ok: true}, nil
}

// BatchOpen implements spec.md §6.1's batch_open.
func (s *Server) BatchOpen(ctx context.Context, req *BatchOpenRequest) (*BatchOpenResponse, error) {
	e, err := s.engineFor(req.SlabID)
	if err != nil {
		return nil, err
	}
	promoted, cErr := e.BatchOpen(req.InstrumentIdx, req.NowMs)
	if cErr != nil {
		return nil, errResponse(cErr)
	}
	return &BatchOpenResponse{PromotedCount: promoted}, nil
}

// LiquidationCall implements spec.md §6.1's liquidation_call, callable
// only through the Router's cross-slab coordination (there is no direct
// per-slab RPC path here, matching the "only callable by Router" rule).
func (s *Server) LiquidationCall(ctx context.Context, req *LiquidationCallRequest) (*LiquidationCallResponse, error) {
	user, err := uuid.Parse(req.User)
	if err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}
	targets := make([]router.LiquidationTarget, 0, len(req.Targets))
	slabMM := make(map[uint16]*big.Int, len(req.Targets))
	for _, t := range req.Targets {
		e, err := s.engineFor(t.SlabID)
		if err != nil {
			return nil, err
		}
		mm, err := bigFromString(t.SlabMM)
		if err != nil {
			return nil, err
		}
		targets = append(targets, router.LiquidationTarget{
			SlabIdx:       t.SlabIdx,
			Engine:        e,
			AccountIdx:    e.AddAccount(user),
			InstrumentIdx: t.InstrumentIdx,
		})
		slabMM[t.SlabIdx] = mm
	}
	residual, cErr := s.Router.LiquidateUser(user, req.CurrentTs, targets, slabMM)
	if cErr != nil {
		return nil, errResponse(cErr)
	}
	return &LiquidationCallResponse{Residual: residual.String()}, nil
}

// Deposit implements spec.md §6.2's deposit.
func (s *Server) Deposit(ctx context.Context, req *DepositRequest) (*VaultResponse, error) {
	mint, err := uuid.Parse(req.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint: %w", err)
	}
	amount, err := bigFromString(req.Amount)
	if err != nil {
		return nil, err
	}
	if cErr := s.Router.Deposit(mint, amount); cErr != nil {
		return nil, errResponse(cErr)
	}
	return &VaultResponse{Available: s.Router.VaultAvailable(mint).String()}, nil
}

// Withdraw implements spec.md §6.2's withdraw.
func (s *Server) Withdraw(ctx context.Context, req *WithdrawRequest) (*VaultResponse, error) {
	mint, err := uuid.Parse(req.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint: %w", err)
	}
	amount, err := bigFromString(req.Amount)
	if err != nil {
		return nil, err
	}
	if cErr := s.Router.Withdraw(mint, amount); cErr != nil {
		return nil, errResponse(cErr)
	}
	return &VaultResponse{Available: s.Router.VaultAvailable(mint).String()}, nil
}

// Pledge implements spec.md §6.2's pledge.
func (s *Server) Pledge(ctx context.Context, req *PledgeRequest) (*VaultResponse, error) {
	user, slabID, mint, amount, err := parseEscrowRequest(req.User, req.SlabID, req.Mint, req.Amount)
	if err != nil {
		return nil, err
	}
	if cErr := s.Router.Pledge(user, slabID, mint, amount); cErr != nil {
		return nil, errResponse(cErr)
	}
	return &VaultResponse{Available: s.Router.VaultAvailable(mint).String()}, nil
}

// Unpledge implements spec.md §6.2's unpledge.
func (s *Server) Unpledge(ctx context.Context, req *UnpledgeRequest) (*VaultResponse, error) {
	user, slabID, mint, amount, err := parseEscrowRequest(req.User, req.SlabID, req.Mint, req.Amount)
	if err != nil {
		return nil, err
	}
	if cErr := s.Router.Unpledge(user, slabID, mint, amount); cErr != nil {
		return nil, errResponse(cErr)
	}
	return &VaultResponse{Available: s.Router.VaultAvailable(mint).String()}, nil
}

func parseEscrowRequest(userS, slabS, mintS, amountS string) (common.AccountKey, common.SlabID, common.Mint, *big.Int, error) {
	user, err := uuid.Parse(userS)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, uuid.UUID{}, nil, fmt.Errorf("invalid user: %w", err)
	}
	slabID, err := uuid.Parse(slabS)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, uuid.UUID{}, nil, fmt.Errorf("invalid slab_id: %w", err)
	}
	mint, err := uuid.Parse(mintS)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, uuid.UUID{}, nil, fmt.Errorf("invalid mint: %w", err)
	}
	amount, err := bigFromString(amountS)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, uuid.UUID{}, nil, err
	}
	return user, slabID, mint, amount, nil
}
