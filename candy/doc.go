/*
Package candy models the self-describing attribute trees that the NFT canister
uses for every piece of structured metadata.

A Class is an ordered list of named properties. Each property carries exactly
one Value, which is one of Text, Nat, Bool, Principal, Array, Class or Option.
Callers inspect values with a type switch or with the typed accessors on Class
(Text, Nat, Bool...), never by probing for tags.

Values cross the wire as single-key maps, e.g. {"Text": "foo"} or
{"Array": {"thawed": [...]}}. Encode and Decode convert between the Go types
and that generic representation, which both encoding/json and the CBOR codec
used by the canister package understand.
*/
package candy
