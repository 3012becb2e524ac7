package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meridianfi/fvm/internal/dripvault"
	"github.com/meridianfi/fvm/internal/farming"
	"github.com/meridianfi/fvm/internal/lockvault"
	"github.com/meridianfi/fvm/internal/state"
	"github.com/meridianfi/fvm/internal/types"
)

// Mutating API handlers. Each handler decodes one JSON request, applies the
// matching service operation and returns the resulting records and transfer
// plan. The transfers are instructions for the caller; nothing here touches
// token balances.

// decodeJSON parses the request body into dst, rejecting unknown fields.
func (ws *WebServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps a service failure to a status code: missing records
// are 404, everything else is an engine rejection.
func (ws *WebServer) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, state.ErrNotFound) {
		ws.writeErrorResponse(w, http.StatusNotFound, "Record not found")
		return
	}
	ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
}

func (ws *WebServer) writePlan(w http.ResponseWriter, plan types.TransferPlan) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"transfers": plan,
	})
}

// --- Farming pools ---

type createPoolRequest struct {
	ID             types.Principal `json:"id"`
	Authority      types.Principal `json:"authority"`
	StakingToken   types.TokenID   `json:"staking_token"`
	StakingVault   types.Principal `json:"staking_vault"`
	RewardAToken   types.TokenID   `json:"reward_a_token"`
	RewardAVault   types.Principal `json:"reward_a_vault"`
	RewardBToken   types.TokenID   `json:"reward_b_token"`
	RewardBVault   types.Principal `json:"reward_b_vault"`
	RewardDuration uint64          `json:"reward_duration"`
}

func (ws *WebServer) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	pool, err := ws.service.InitializePool(farming.PoolConfig{
		ID:             req.ID,
		Authority:      req.Authority,
		StakingToken:   req.StakingToken,
		StakingVault:   req.StakingVault,
		RewardAToken:   req.RewardAToken,
		RewardAVault:   req.RewardAVault,
		RewardBToken:   req.RewardBToken,
		RewardBVault:   req.RewardBVault,
		RewardDuration: req.RewardDuration,
	})
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, pool)
}

func (ws *WebServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Owner types.Principal `json:"owner"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	user, err := ws.service.CreateUser(poolID, req.Owner)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, user)
}

func (ws *WebServer) handleCloseUser(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	owner, ok := ws.principalParam(w, r, "owner")
	if !ok {
		return
	}
	if err := ws.service.CloseUser(poolID, owner); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Owner  types.Principal `json:"owner"`
		Amount uint64          `json:"amount"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	plan, err := ws.service.Deposit(poolID, req.Owner, req.Amount)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writePlan(w, plan)
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Owner  types.Principal `json:"owner"`
		Amount uint64          `json:"amount"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	plan, err := ws.service.Withdraw(poolID, req.Owner, req.Amount)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writePlan(w, plan)
}

func (ws *WebServer) handleFund(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Funder  types.Principal `json:"funder"`
		AmountA uint64          `json:"amount_a"`
		AmountB uint64          `json:"amount_b"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	plan, err := ws.service.Fund(poolID, req.Funder, req.AmountA, req.AmountB)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writePlan(w, plan)
}

func (ws *WebServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Owner         types.Principal `json:"owner"`
		VaultABalance uint64          `json:"vault_a_balance"`
		VaultBBalance uint64          `json:"vault_b_balance"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	plan, err := ws.service.Claim(poolID, req.Owner, req.VaultABalance, req.VaultBBalance)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writePlan(w, plan)
}

func (ws *WebServer) handlePause(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	if err := ws.service.Pause(poolID); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]bool{"paused": true})
}

func (ws *WebServer) handleUnpause(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	if err := ws.service.Unpause(poolID); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]bool{"paused": false})
}

func (ws *WebServer) handleAuthorizeFunder(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Funder types.Principal `json:"funder"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	if err := ws.service.AuthorizeFunder(poolID, req.Funder); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleDeauthorizeFunder(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Funder types.Principal `json:"funder"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	if err := ws.service.DeauthorizeFunder(poolID, req.Funder); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleWithdrawExtra(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Recipient           types.Principal `json:"recipient"`
		StakingVaultBalance uint64          `json:"staking_vault_balance"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	plan, err := ws.service.WithdrawExtraToken(poolID, req.Recipient, req.StakingVaultBalance)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writePlan(w, plan)
}

func (ws *WebServer) handleClosePool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Refundee            types.Principal `json:"refundee"`
		StakingVaultBalance uint64          `json:"staking_vault_balance"`
		VaultABalance       uint64          `json:"vault_a_balance"`
		VaultBBalance       uint64          `json:"vault_b_balance"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	plan, err := ws.service.ClosePool(poolID, req.Refundee, req.StakingVaultBalance, req.VaultABalance, req.VaultBBalance)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writePlan(w, plan)
}

// --- Drip vaults ---

type createVaultRequest struct {
	ID         types.Principal `json:"id"`
	Token      types.TokenID   `json:"token"`
	TokenVault types.Principal `json:"token_vault"`
	LPMint     types.Principal `json:"lp_mint"`
	Admin      types.Principal `json:"admin"`
	Funder     types.Principal `json:"funder"`
}

func (ws *WebServer) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	vault, err := ws.service.InitializeVault(dripvault.Vault{
		ID:         req.ID,
		Token:      req.Token,
		TokenVault: req.TokenVault,
		LPMint:     req.LPMint,
		Admin:      req.Admin,
		Funder:     req.Funder,
	})
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, vault)
}

func (ws *WebServer) handleVaultStake(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Staker   types.Principal `json:"staker"`
		Tokens   uint64          `json:"tokens"`
		LPSupply uint64          `json:"lp_supply"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	minted, plan, err := ws.service.StakeVault(vaultID, req.Staker, req.Tokens, req.LPSupply)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"lp_minted": minted,
		"transfers": plan,
	})
}

func (ws *WebServer) handleVaultUnstake(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Staker          types.Principal `json:"staker"`
		LPBurn          uint64          `json:"lp_burn"`
		CallerLPBalance uint64          `json:"caller_lp_balance"`
		LPSupply        uint64          `json:"lp_supply"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	out, plan, err := ws.service.UnstakeVault(vaultID, req.Staker, req.LPBurn, req.CallerLPBalance, req.LPSupply)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"tokens_out": out,
		"transfers":  plan,
	})
}

func (ws *WebServer) handleVaultReward(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Funder types.Principal `json:"funder"`
		Tokens uint64          `json:"tokens"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	plan, err := ws.service.RewardVault(vaultID, req.Funder, req.Tokens)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writePlan(w, plan)
}

func (ws *WebServer) handleVaultDegradation(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Admin       types.Principal `json:"admin"`
		Degradation uint64          `json:"degradation"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	if err := ws.service.UpdateDegradation(vaultID, req.Admin, req.Degradation); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleVaultAdmin(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Admin    types.Principal `json:"admin"`
		NewAdmin types.Principal `json:"new_admin"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	if err := ws.service.TransferVaultAdmin(vaultID, req.Admin, req.NewAdmin); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Lock vaults ---

type createLockVaultRequest struct {
	ID         types.Principal `json:"id"`
	Token      types.TokenID   `json:"token"`
	TokenVault types.Principal `json:"token_vault"`
	LPMint     types.Principal `json:"lp_mint"`
	Admin      types.Principal `json:"admin"`
}

func (ws *WebServer) handleCreateLockVault(w http.ResponseWriter, r *http.Request) {
	var req createLockVaultRequest
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	vault, err := ws.service.InitializeLockVault(lockvault.Vault{
		ID:         req.ID,
		Token:      req.Token,
		TokenVault: req.TokenVault,
		LPMint:     req.LPMint,
		Admin:      req.Admin,
	})
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, vault)
}

func (ws *WebServer) handleSetReleaseDate(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Admin types.Principal `json:"admin"`
		Date  uint64          `json:"date"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	if err := ws.service.SetReleaseDate(vaultID, req.Admin, req.Date); err != nil {
		ws.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleLock(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		User   types.Principal `json:"user"`
		Amount uint64          `json:"amount"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	minted, plan, err := ws.service.Lock(vaultID, req.User, req.Amount)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"lp_minted": minted,
		"transfers": plan,
	})
}

func (ws *WebServer) handleUnlock(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		User            types.Principal `json:"user"`
		Amount          uint64          `json:"amount"`
		CallerLPBalance uint64          `json:"caller_lp_balance"`
	}
	if !ws.decodeJSON(w, r, &req) {
		return
	}
	out, plan, err := ws.service.Unlock(vaultID, req.User, req.Amount, req.CallerLPBalance)
	if err != nil {
		ws.writeServiceError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"tokens_out": out,
		"transfers":  plan,
	})
}
