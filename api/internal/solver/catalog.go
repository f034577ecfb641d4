package solver

// Example is a catalog problem with its worked solution.
type Example struct {
	Problem  string
	Solution string
	Steps    []string
}

var catalog = []Example{
	{
		Problem:  "1+1",
		Solution: "2",
		Steps: []string{
			"Start with the expression: 1+1",
			"Addition of 1 and 1 gives us 2",
			"Therefore, 1+1 = 2",
		},
	},
	{
		Problem:  "2+2",
		Solution: "4",
		Steps: []string{
			"Start with the expression: 2+2",
			"Addition of 2 and 2 gives us 4",
			"Therefore, 2+2 = 4",
		},
	},
	{
		Problem:  "2x + 3 = 7",
		Solution: "x = 2",
		Steps: []string{
			"Start with the equation: 2x + 3 = 7",
			"Subtract 3 from both sides: 2x = 4",
			"Divide both sides by 2: x = 2",
		},
	},
	{
		Problem:  "x^2 - 4 = 0",
		Solution: "x = 2 or x = -2",
		Steps: []string{
			"Start with the equation: x^2 - 4 = 0",
			"Rearrange to standard form: x^2 = 4",
			"Take the square root of both sides: x = ±2",
			"Therefore, x = 2 or x = -2",
		},
	},
	{
		Problem:  "3x - 7 = 5x + 3",
		Solution: "x = -5",
		Steps: []string{
			"Start with the equation: 3x - 7 = 5x + 3",
			"Subtract 5x from both sides: -2x - 7 = 3",
			"Add 7 to both sides: -2x = 10",
			"Divide both sides by -2: x = -5",
		},
	},
	{
		Problem:  `\frac{1}{2}x + 3 = 7`,
		Solution: "x = 8",
		Steps: []string{
			`Start with the equation: \frac{1}{2}x + 3 = 7`,
			`Subtract 3 from both sides: \frac{1}{2}x = 4`,
			"Multiply both sides by 2: x = 8",
		},
	},
}

// Catalog returns a copy of the built-in examples.
func Catalog() []Example {
	out := make([]Example, len(catalog))
	for i, ex := range catalog {
		out[i] = Example{Problem: ex.Problem, Solution: ex.Solution, Steps: append([]string(nil), ex.Steps...)}
	}
	return out
}

// Problems lists the catalog problem strings in catalog order.
func Problems() []string {
	out := make([]string, len(catalog))
	for i, ex := range catalog {
		out[i] = ex.Problem
	}
	return out
}

func lookup(problem string) (Example, bool) {
	for _, ex := range catalog {
		if ex.Problem == problem {
			return ex, true
		}
	}
	return Example{}, false
}
