// Package interfaces defines the types and contracts shared by the travel
// identity client components.
//
// It separates the interface definitions from their implementations so the
// session can be driven by a real wallet and contract in production and by
// mocks in tests:
//
//   - WalletProvider: authorizes accounts and hands out a signer
//   - IdentityContract: a handle bound to the deployed identity contract
//   - ContractBinder: creates IdentityContract handles for an address
//   - DocumentStore: content-addressed archive for identity documents
//
// # Type Definitions
//
//   - RegistrationInput: the name / email / document hash triple, with Validate
//   - ValidationErrors: per-field validation messages
//   - UserRecord: the record returned by getUser
//   - ContentID: SHA-256 hash addressing an archived document
//   - StoreLocation: a parsed document store URI
//
// # Error Types
//
//   - ErrContentNotFound: the document is not in the store
//   - ErrBackendUnavailable: the store cannot be reached
//   - ErrInvalidLocationURI: the store URI is malformed or unsupported
package interfaces
