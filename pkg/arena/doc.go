// Package arena provides a generational slot arena.
//
// Values are addressed by a Key made of a slot index and a generation. A
// removed slot is reused with a bumped generation, so a Key that outlived
// its value never resolves to whatever took the slot next.
package arena
