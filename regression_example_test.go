package regression

import (
	"fmt"

	"github.com/aouyang1/go-regression/datasets"
)

func ExampleOLS() {
	ds, err := datasets.Longley()
	if err != nil {
		panic(err)
	}

	res, err := OLS(ds.Endog, ds.Exog, nil)
	if err != nil {
		panic(err)
	}
	r2, err := res.RSquared()
	if err != nil {
		panic(err)
	}

	fmt.Printf("x1: %.4f\n", res.Params()[1])
	fmt.Printf("x6: %.2f\n", res.Params()[6])
	fmt.Printf("r2: %.4f\n", r2)
	// Output:
	// x1: 15.0619
	// x6: 1829.15
	// r2: 0.9955
}
