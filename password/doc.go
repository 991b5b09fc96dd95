// Package password hashes and verifies user passwords.
//
// [Bcrypt] is the default [Hasher]; [Argon2] produces PHC strings of the form
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both report through NeedsUpgrade when a stored hash was produced with
// weaker parameters than the hasher is configured for, so callers can rehash
// after the next successful login. [ForHash] picks the matching hasher for a
// stored value when both formats coexist.
//
// Password policy such as minimum length belongs to the caller.
package password
