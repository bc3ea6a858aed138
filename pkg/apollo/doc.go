// Package apollo classifies agricultural field-report messages as "operation"
// or "not operation" with a sentence encoder and a logistic-regression head.
//
// Quick start:
//
//	a, err := apollo.New(apollo.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	res, _ := a.Classify(ctx, "Пахота зяби под мн тр\nПо Пу 26/488")
//	fmt.Println(res.Probability, res.Prediction) // 0.97 1
//
// The Apollo instance is safe for concurrent use. Create once, reuse across
// requests.
package apollo
