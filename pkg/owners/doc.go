// Package owners resolves a site ID to the account that owns it and the name
// of that account's plan.
package owners
