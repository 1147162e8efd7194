package debugapi

type (
	StatusResponse        = statusResponse
	AddressesResponse     = addressesResponse
	TokenMintRequest      = tokenMintRequest
	TokenApproveRequest   = tokenApproveRequest
	TokenBalanceResponse  = tokenBalanceResponse
	TokenBalancesResponse = tokenBalancesResponse
)
