package config

import "strings"

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityUser                         // Any authenticated account
	SecurityService                      // Backend caller holding a service API key
	SecurityAdmin                        // Token carrying the admin role
)

func (l SecurityLevel) String() string {
	switch l {
	case SecurityPublic:
		return "public"
	case SecurityUser:
		return "user"
	case SecurityService:
		return "service"
	case SecurityAdmin:
		return "admin"
	}
	return "unknown"
}

// EndpointSecurityConfig maps methods to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health and reflection
	"/grpc.health.v1.Health/Check": SecurityPublic,
	"/grpc.health.v1.Health/Watch": SecurityPublic,

	// LedgerService - wallet owner
	"/drivekr.wallet.v1.LedgerService/GetBalance":            SecurityUser,
	"/drivekr.wallet.v1.LedgerService/RequestDeposit":        SecurityUser,
	"/drivekr.wallet.v1.LedgerService/RequestWithdrawal":     SecurityUser,
	"/drivekr.wallet.v1.LedgerService/GetTransactionHistory": SecurityUser,
	"/drivekr.wallet.v1.LedgerService/GetTransactionStats":   SecurityUser,

	// LedgerService - ride service only
	"/drivekr.wallet.v1.LedgerService/SettleRide": SecurityService,

	// AccountService
	"/drivekr.wallet.v1.AccountService/RegisterAccount":      SecurityUser,
	"/drivekr.wallet.v1.AccountService/GetAccount":           SecurityUser,
	"/drivekr.wallet.v1.AccountService/ListNotifications":    SecurityUser,
	"/drivekr.wallet.v1.AccountService/MarkNotificationRead": SecurityUser,

	// AdminService
	"/drivekr.wallet.v1.AdminService/ApproveTransaction":             SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/RejectTransaction":              SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/ApproveDriverDocuments":         SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/RejectDriverDocuments":          SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/BlockUser":                      SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/UnblockUser":                    SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/ListPendingTransactions":        SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/ListPendingDriverVerifications": SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/GetPlatformStats":               SecurityAdmin,
	"/drivekr.wallet.v1.AdminService/SendBroadcast":                  SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given method
func GetSecurityLevel(method string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method]; exists {
		return level
	}
	if strings.HasPrefix(method, "/grpc.reflection.") {
		return SecurityPublic
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
