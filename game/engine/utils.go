package engine

// Log2 returns the base-2 exponent of a tile value, 0 for values below 2.
func Log2(value int) int {
	exp := 0
	for v := value; v > 1; v >>= 1 {
		exp++
	}
	return exp
}

// Pow2 returns the tile value for an exponent, 0 for exponent 0.
func Pow2(exp int) int {
	if exp <= 0 {
		return 0
	}
	return 1 << exp
}

// ValuesFromLog2 converts flattened exponents to tile values.
func ValuesFromLog2(exps []int) []int {
	values := make([]int, len(exps))
	for i, e := range exps {
		values[i] = Pow2(e)
	}
	return values
}

// StatusOf derives the coarse status from the game flags.
func StatusOf(over, won, keepPlaying bool) Status {
	switch {
	case over:
		return StatusOver
	case won && !keepPlaying:
		return StatusWonPending
	default:
		return StatusActive
	}
}
