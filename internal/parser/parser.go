// Package parser reads the libsvm text model format into an immutable model.
//
// The format is a block of "key value..." header lines, a line holding only
// "SV", and then one line per support vector:
//
//	svm_type c_svc
//	kernel_type rbf
//	gamma 0.5
//	nr_class 2
//	total_sv 2
//	rho -2.90877
//	label 0 1
//	nr_sv 1 1
//	SV
//	1 1:0.3093766 6:0.1764706 9:1 10:0.1137485
//	-5 1:0.3332312 5:0.09657142 6:1 9:1 10:0.09917226
//
// Classification models store nr_class-1 coefficients per support vector,
// regression models store one.
package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"svmengine/internal/domain/model"
	"svmengine/pkg/errors"
)

const (
	defaultDegree = 3
	maxLineBytes  = 64 << 20
	maxPrealloc   = 1 << 16
)

// header collects raw header values before cross-field validation
type header struct {
	seen map[string]int // key -> line

	svmType    model.SVMType
	kernelType model.KernelType
	gamma      float64
	coef0      float64
	degree     int
	nrClass    int
	totalSV    int
	rho        []float64
	label      []int32
	probA      []float64
	probB      []float64
	nrSV       []int
}

func (h *header) has(key string) bool {
	_, ok := h.seen[key]
	return ok
}

// rawVector is one data line before it is split into classes
type rawVector struct {
	coefs      []float64
	start, end int // range in the shared node buffer
}

// Parse parses a model from its text form
func Parse(text string) (*model.Model, error) {
	return ParseReader(strings.NewReader(text))
}

// ParseBytes parses a model from raw bytes, as handed over by the boundary
func ParseBytes(data []byte) (*model.Model, error) {
	return ParseReader(bytes.NewReader(data))
}

// ParseReader parses a model from a reader
func ParseReader(r io.Reader) (*model.Model, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	h := &header{seen: make(map[string]int), degree: defaultDegree}
	line := 0
	sawMarker := false

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "SV" && len(fields) == 1 {
			sawMarker = true
			break
		}
		if err := h.apply(line, fields[0], fields[1:]); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read model")
	}
	if !sawMarker {
		return nil, errors.NewParseError(errors.ParseMissingField, 0, "SV", "support vector marker not found")
	}
	if err := h.validate(line); err != nil {
		return nil, err
	}

	nCoef := h.nrClass - 1
	if h.svmType.IsRegression() {
		nCoef = 1
	}

	// total_sv is untrusted until the lines are counted
	hint := min(h.totalSV, maxPrealloc)
	vectors := make([]rawVector, 0, hint)
	nodes := make([]model.Node, 0, hint*8)
	maxIndex := 0

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(vectors) == h.totalSV {
			return nil, errors.NewParseError(errors.ParseSVCountMismatch, line, "total_sv",
				fmt.Sprintf("more than %d support vector lines", h.totalSV))
		}

		vec, err := parseVector(line, fields, nCoef, &nodes)
		if err != nil {
			return nil, err
		}
		if vec.end > vec.start {
			if idx := int(nodes[vec.end-1].Index); idx > maxIndex {
				maxIndex = idx
			}
		}
		vectors = append(vectors, vec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read model")
	}
	if len(vectors) != h.totalSV {
		return nil, errors.NewParseError(errors.ParseSVCountMismatch, line, "total_sv",
			fmt.Sprintf("expected %d support vector lines, got %d", h.totalSV, len(vectors)))
	}

	m := assemble(h, vectors, nodes)
	m.NumAttributes = maxIndex

	if err := m.Validate(); err != nil {
		return nil, errors.NewParseError(errors.ParseInvalidParameter, 0, "", err.Error())
	}
	return m, nil
}

func (h *header) apply(line int, key string, args []string) error {
	if prev, dup := h.seen[key]; dup {
		return errors.NewParseError(errors.ParseMalformedHeader, line, key,
			fmt.Sprintf("duplicate header, first seen at line %d", prev))
	}

	var err error
	switch key {
	case "svm_type":
		var s string
		if s, err = single(line, key, args); err == nil {
			h.svmType = model.SVMType(s)
			if !h.svmType.Valid() {
				return errors.NewParseError(errors.ParseUnknownSvmType, line, key, fmt.Sprintf("unsupported svm type %q", s))
			}
		}
	case "kernel_type":
		var s string
		if s, err = single(line, key, args); err == nil {
			kt, ok := model.ParseKernelType(s)
			if !ok {
				return errors.NewParseError(errors.ParseUnknownKernelType, line, key, fmt.Sprintf("unsupported kernel type %q", s))
			}
			h.kernelType = kt
		}
	case "gamma":
		h.gamma, err = singleFloat(line, key, args)
	case "coef0":
		h.coef0, err = singleFloat(line, key, args)
	case "degree":
		h.degree, err = singleInt(line, key, args)
	case "nr_class":
		h.nrClass, err = singleInt(line, key, args)
	case "total_sv":
		h.totalSV, err = singleInt(line, key, args)
	case "rho":
		h.rho, err = floatList(line, key, args)
	case "probA":
		h.probA, err = floatList(line, key, args)
	case "probB":
		h.probB, err = floatList(line, key, args)
	case "label":
		h.label = make([]int32, len(args))
		for i, a := range args {
			v, perr := strconv.ParseInt(a, 10, 32)
			if perr != nil {
				return errors.NewParseError(errors.ParseMalformedHeader, line, key, fmt.Sprintf("invalid label %q", a))
			}
			h.label[i] = int32(v)
		}
	case "nr_sv":
		h.nrSV = make([]int, len(args))
		for i, a := range args {
			v, perr := strconv.Atoi(a)
			if perr != nil || v < 0 {
				return errors.NewParseError(errors.ParseMalformedHeader, line, key, fmt.Sprintf("invalid count %q", a))
			}
			h.nrSV[i] = v
		}
	default:
		return errors.NewParseError(errors.ParseMalformedHeader, line, key, "unknown header")
	}
	if err != nil {
		return err
	}

	h.seen[key] = line
	return nil
}

func (h *header) validate(line int) error {
	for _, key := range []string{"svm_type", "kernel_type", "nr_class", "total_sv", "rho"} {
		if !h.has(key) {
			return errors.NewParseError(errors.ParseMissingField, line, key, "required header missing")
		}
	}

	switch h.kernelType {
	case model.KernelPoly, model.KernelRBF, model.KernelSigmoid:
		if !h.has("gamma") {
			return errors.NewParseError(errors.ParseMissingField, line, "gamma",
				fmt.Sprintf("required by %s kernel", h.kernelType))
		}
	}
	if (h.kernelType == model.KernelRBF || h.kernelType == model.KernelSigmoid) && !(h.gamma > 0) {
		return errors.NewParseError(errors.ParseInvalidParameter, h.seen["gamma"], "gamma",
			fmt.Sprintf("must be > 0 for %s kernel, got %v", h.kernelType, h.gamma))
	}
	if h.kernelType == model.KernelPoly && h.degree < 0 {
		return errors.NewParseError(errors.ParseInvalidParameter, h.seen["degree"], "degree",
			fmt.Sprintf("must be >= 0, got %d", h.degree))
	}
	if h.nrClass < 1 {
		return errors.NewParseError(errors.ParseInvalidParameter, h.seen["nr_class"], "nr_class",
			fmt.Sprintf("must be >= 1, got %d", h.nrClass))
	}
	if h.totalSV < 0 {
		return errors.NewParseError(errors.ParseInvalidParameter, h.seen["total_sv"], "total_sv",
			fmt.Sprintf("must be >= 0, got %d", h.totalSV))
	}

	if h.svmType.IsRegression() {
		if len(h.rho) != 1 {
			return errors.NewParseError(errors.ParseMalformedHeader, h.seen["rho"], "rho",
				fmt.Sprintf("regression models need 1 value, got %d", len(h.rho)))
		}
		if h.has("probB") {
			return errors.NewParseError(errors.ParseMalformedHeader, h.seen["probB"], "probB",
				"regression models carry probA only")
		}
		if h.has("probA") && len(h.probA) != 1 {
			return errors.NewParseError(errors.ParseMalformedHeader, h.seen["probA"], "probA",
				fmt.Sprintf("regression models need 1 value, got %d", len(h.probA)))
		}
		return nil
	}

	pairs := h.nrClass * (h.nrClass - 1) / 2
	if len(h.rho) != pairs {
		return errors.NewParseError(errors.ParseMalformedHeader, h.seen["rho"], "rho",
			fmt.Sprintf("expected %d values for %d classes, got %d", pairs, h.nrClass, len(h.rho)))
	}
	for _, key := range []string{"label", "nr_sv"} {
		if !h.has(key) {
			return errors.NewParseError(errors.ParseMissingField, line, key, "required for classification")
		}
	}
	if len(h.label) != h.nrClass {
		return errors.NewParseError(errors.ParseMalformedHeader, h.seen["label"], "label",
			fmt.Sprintf("expected %d labels, got %d", h.nrClass, len(h.label)))
	}
	if len(h.nrSV) != h.nrClass {
		return errors.NewParseError(errors.ParseMalformedHeader, h.seen["nr_sv"], "nr_sv",
			fmt.Sprintf("expected %d counts, got %d", h.nrClass, len(h.nrSV)))
	}
	sum := 0
	for c, n := range h.nrSV {
		if n < 0 || n > h.totalSV-sum {
			return errors.NewParseError(errors.ParseSVCountMismatch, h.seen["nr_sv"], "nr_sv",
				fmt.Sprintf("count %d of class %d does not fit total_sv %d", n, c, h.totalSV))
		}
		sum += n
	}
	if sum != h.totalSV {
		return errors.NewParseError(errors.ParseSVCountMismatch, h.seen["nr_sv"], "nr_sv",
			fmt.Sprintf("counts sum to %d, total_sv is %d", sum, h.totalSV))
	}

	hasA, hasB := h.has("probA"), h.has("probB")
	switch {
	case hasA && !hasB:
		return errors.NewParseError(errors.ParseMissingField, line, "probB", "probA given without probB")
	case hasB && !hasA:
		return errors.NewParseError(errors.ParseMissingField, line, "probA", "probB given without probA")
	case hasA && hasB:
		if len(h.probA) != pairs {
			return errors.NewParseError(errors.ParseMalformedHeader, h.seen["probA"], "probA",
				fmt.Sprintf("expected %d values, got %d", pairs, len(h.probA)))
		}
		if len(h.probB) != pairs {
			return errors.NewParseError(errors.ParseMalformedHeader, h.seen["probB"], "probB",
				fmt.Sprintf("expected %d values, got %d", pairs, len(h.probB)))
		}
	}
	return nil
}

// parseVector reads "c1 .. cK i:v i:v ..." appending nodes to the shared buffer
func parseVector(line int, fields []string, nCoef int, nodes *[]model.Node) (rawVector, error) {
	vec := rawVector{coefs: make([]float64, 0, nCoef), start: len(*nodes)}

	var last int64
	for _, tok := range fields {
		colon := strings.IndexByte(tok, ':')
		if colon < 0 {
			if len(vec.coefs) == nCoef || len(*nodes) > vec.start {
				return rawVector{}, errors.NewParseError(errors.ParseCoefficientCountMismatch, line, "",
					fmt.Sprintf("expected %d coefficients, found extra value %q", nCoef, tok))
			}
			c, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return rawVector{}, errors.NewParseError(errors.ParseMalformedSupportVector, line, "",
					fmt.Sprintf("invalid coefficient %q", tok))
			}
			vec.coefs = append(vec.coefs, c)
			continue
		}

		if len(vec.coefs) != nCoef {
			return rawVector{}, errors.NewParseError(errors.ParseCoefficientCountMismatch, line, "",
				fmt.Sprintf("expected %d coefficients, got %d", nCoef, len(vec.coefs)))
		}
		index, err := strconv.ParseInt(tok[:colon], 10, 32)
		if err != nil || index < 1 {
			return rawVector{}, errors.NewParseError(errors.ParseMalformedSupportVector, line, "",
				fmt.Sprintf("invalid feature index in %q", tok))
		}
		value, err := strconv.ParseFloat(tok[colon+1:], 64)
		if err != nil {
			return rawVector{}, errors.NewParseError(errors.ParseMalformedSupportVector, line, "",
				fmt.Sprintf("invalid feature value in %q", tok))
		}
		if len(*nodes) > vec.start && index <= last {
			return rawVector{}, errors.NewParseError(errors.ParseNonIncreasingIndex, line, "",
				fmt.Sprintf("index %d does not follow %d", index, last))
		}
		last = index
		*nodes = append(*nodes, model.Node{Index: int32(index), Value: value})
	}

	if len(vec.coefs) != nCoef {
		return rawVector{}, errors.NewParseError(errors.ParseCoefficientCountMismatch, line, "",
			fmt.Sprintf("expected %d coefficients, got %d", nCoef, len(vec.coefs)))
	}
	vec.end = len(*nodes)
	return vec, nil
}

// assemble groups the support vectors by class. Vectors appear in the file
// grouped by class, in label order, nr_sv[c] at a time.
func assemble(h *header, vectors []rawVector, nodes []model.Node) *model.Model {
	m := &model.Model{
		Type: h.svmType,
		Kernel: model.KernelParams{
			Type:   h.kernelType,
			Gamma:  h.gamma,
			Coef0:  h.coef0,
			Degree: h.degree,
		},
		Rho:     h.rho,
		TotalSV: h.totalSV,
		Nodes:   nodes,
	}

	counts := h.nrSV
	labels := h.label
	rows := h.nrClass - 1
	if h.svmType.IsRegression() {
		counts = []int{h.totalSV}
		labels = []int32{0}
		rows = 1
		if h.has("probA") {
			sigma := h.probA[0]
			m.SVRProbability = &sigma
		}
	} else if h.has("probA") {
		m.Probability = &model.Calibration{A: h.probA, B: h.probB}
	}

	m.Classes = make([]model.Class, len(counts))
	offset := 0
	for c, n := range counts {
		class := model.Class{
			Label:          labels[c],
			SupportVectors: make([]model.SparseVector, n),
			Coefficients:   make([]float64, rows*n),
		}
		for v := 0; v < n; v++ {
			raw := vectors[offset+v]
			class.SupportVectors[v] = model.SparseVector(nodes[raw.start:raw.end:raw.end])
			for k, coef := range raw.coefs {
				class.Coefficients[k*n+v] = coef
			}
		}
		m.Classes[c] = class
		offset += n
	}
	return m
}

func single(line int, key string, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.NewParseError(errors.ParseMalformedHeader, line, key,
			fmt.Sprintf("expected 1 value, got %d", len(args)))
	}
	return args[0], nil
}

func singleFloat(line int, key string, args []string) (float64, error) {
	s, err := single(line, key, args)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseFloat(s, 64)
	if perr != nil {
		return 0, errors.NewParseError(errors.ParseMalformedHeader, line, key, fmt.Sprintf("invalid number %q", s))
	}
	return v, nil
}

func singleInt(line int, key string, args []string) (int, error) {
	s, err := single(line, key, args)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.Atoi(s)
	if perr != nil {
		return 0, errors.NewParseError(errors.ParseMalformedHeader, line, key, fmt.Sprintf("invalid integer %q", s))
	}
	return v, nil
}

func floatList(line int, key string, args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, errors.NewParseError(errors.ParseMalformedHeader, line, key, fmt.Sprintf("invalid number %q", a))
		}
		out[i] = v
	}
	return out, nil
}
