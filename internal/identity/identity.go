// Package identity implements operator authentication for the trust fabric.
//
// It provides:
//   - TokenIssuer  - checks the bcrypt-hashed admin secret and issues and
//     verifies HS256 JWT admin tokens
//   - RequireToken - Gin middleware enforcing Bearer admin token authentication
package identity
