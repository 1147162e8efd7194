package api

type Server = server

type (
	ConfigResponse         = configResponse
	BalanceResponse        = balanceResponse
	AllowanceResponse      = allowanceResponse
	AllowancesResponse     = allowancesResponse
	AllowanceUpdateRequest = allowanceUpdateRequest
	DepositRequest         = depositRequest
	DepositsResponse       = depositsResponse
	CalculateRequest       = calculateRequest
	CalculateResponse      = calculateResponse
	TierRatioRequest       = tierRatioRequest
	LimitRequest           = limitRequest
	ClaimRequest           = claimRequest
	ClaimResponse          = claimResponse
)

var (
	ErrInvalidAccount      = errInvalidAccount
	ErrInvalidTierIndex    = errInvalidTierIndex
	ErrIncompatibleVersion = errIncompatibleVersion
	ErrDepositRateExceeded = errDepositRateExceeded
)

var CheckVersion = checkVersion
