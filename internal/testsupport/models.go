package testsupport

import (
	"fmt"
	"strings"
)

// Model texts shared by package tests. Expected outputs next to each fixture
// were worked out by hand.

// BinaryRBFModel is a two-class rbf model with one support vector per class.
// Dense BinaryRBFInputA predicts label 0, BinaryRBFInputB predicts label 1.
const BinaryRBFModel = `svm_type c_svc
kernel_type rbf
gamma 1
nr_class 2
total_sv 2
rho -2.90877
label 0 1
nr_sv 1 1
SV
1 1:0.3093766 6:0.1764706 9:1 10:0.1137485
-5 1:0.3332312 5:0.09657142 6:1 9:1 10:0.09917226
`

// Dense inputs matching the two support vectors of BinaryRBFModel
var (
	BinaryRBFInputA = []float64{0.3093766, 0, 0, 0, 0, 0.1764706, 0, 0, 1, 0.1137485}
	BinaryRBFInputB = []float64{0.3332312, 0, 0, 0, 0.09657142, 1, 0, 0, 1, 0.09917226}
)

// Decision values of BinaryRBFModel for the two inputs
const (
	BinaryRBFDecisionA = 1.396643
	BinaryRBFDecisionB = -1.588805
)

// BinaryRBFProbabilityModel is BinaryRBFModel with sigmoid calibration
var BinaryRBFProbabilityModel = strings.Replace(BinaryRBFModel,
	"nr_sv 1 1\n", "probA -1.5\nprobB 0.1\nnr_sv 1 1\n", 1)

// ThreeClassLinearModel has one support vector per class over two features.
// Every coefficient row is distinct so a wrong pair layout changes the
// decision values:
//
//	x = (2, 0)   -> decisions (1.5, 5, 1.75)   label 1
//	x = (0, 2)   -> decisions (-2.5, 3, 3.75)  label 2
//	x = (-2, -2) -> decisions (-0.5, -5, -6.25) label 3
const ThreeClassLinearModel = `svm_type c_svc
kernel_type linear
nr_class 3
total_sv 3
rho 0.5 -1 0.25
label 1 2 3
nr_sv 1 1 1
SV
1 1 1:1
-1 1 2:1
-1 -1 1:-1 2:-1
`

// ThreeClassProbabilityModel adds calibration to ThreeClassLinearModel
var ThreeClassProbabilityModel = strings.Replace(ThreeClassLinearModel,
	"nr_sv 1 1 1\n", "probA -2 -2 -2\nprobB 0 0 0\nnr_sv 1 1 1\n", 1)

// RegressionModel is a linear epsilon-SVR: f(x) = 0.5*x1 - 0.25*x2 - 0.1
const RegressionModel = `svm_type epsilon_svr
kernel_type linear
nr_class 2
total_sv 2
rho 0.1
probA 0.3
SV
0.5 1:1
-0.25 2:1
`

// CyclicTieModel is a three-class model whose pairwise votes form a cycle
// (0 beats 1, 1 beats 2, 2 beats 0), so every input ties at one vote each.
const CyclicTieModel = `svm_type c_svc
kernel_type linear
nr_class 3
total_sv 3
rho -1 1 -1
label 7 8 9
nr_sv 1 1 1
SV
0 0 1:1
0 0 2:1
0 0 3:1
`

// UniformModel builds a c-class linear model with zero coefficients and flat
// calibration: every pairwise probability is 0.5 and the coupled
// distribution is uniform.
func UniformModel(classes int) string {
	var b strings.Builder
	b.WriteString("svm_type c_svc\nkernel_type linear\n")
	fmt.Fprintf(&b, "nr_class %d\ntotal_sv %d\n", classes, classes)

	pairs := classes * (classes - 1) / 2
	for _, key := range []string{"rho", "probA", "probB"} {
		b.WriteString(key)
		for i := 0; i < pairs; i++ {
			b.WriteString(" 0")
		}
		b.WriteString("\n")
	}
	b.WriteString("label")
	for c := 0; c < classes; c++ {
		fmt.Fprintf(&b, " %d", c+1)
	}
	b.WriteString("\nnr_sv")
	for c := 0; c < classes; c++ {
		b.WriteString(" 1")
	}
	b.WriteString("\nSV\n")
	for c := 0; c < classes; c++ {
		for k := 0; k < classes-1; k++ {
			b.WriteString("0 ")
		}
		fmt.Fprintf(&b, "%d:1\n", c+1)
	}
	return b.String()
}
