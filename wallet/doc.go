// Package wallet defines the account model and the collaborator interfaces
// the rewards engine needs from its host wallet: message signing, account
// listing and event subscription.
//
// LocalSigner, MemorySource and Bus are in-memory implementations used by
// the development twin and by tests.
package wallet
