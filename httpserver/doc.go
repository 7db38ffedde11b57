/*
Package httpserver serves the travel identity registration form and a JSON
API over a single wallet session.

The form mirrors a browser dapp: three inputs (username, email, hash ID), a
"Verify" action that registers the identity and a "Get User Details" action
that reads the connected account's record back. The wallet is connected on
first use. Field validation errors are rendered next to their inputs; every
other failure is shown as a generic notice while the detail goes to the log.

# Endpoints

  - GET /: registration form
  - POST /register: submit the form (username, email, hashId)
  - POST /user: show the connected account's record
  - POST /api/connect: connect or re-bind the wallet
  - GET /api/session: session state and address
  - POST /api/register: register {"name", "email", "documentHash"}
  - GET /api/user: record of the connected account
  - GET /api/user/{address}: record of any address
  - POST /api/documents: archive a document and return its hash
  - GET /livez, /readyz, /drain, /undrain: health and draining

# Status codes

JSON errors carry a notice and, for validation failures, a field map:

  - 400: malformed body or address
  - 404: address has no record
  - 409: wallet not connected, or a registration is already in flight
  - 422: field validation failed
  - 202: registration submitted but not yet confirmed
  - 502: the wallet, node or contract failed
*/
package httpserver
