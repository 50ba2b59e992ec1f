// Package cpufeatures provides x86 instruction-set feature detection.
//
// It issues CPUID (leaves 0, 1 and 7) and XGETBV, and decodes a fixed set
// of bits into a [FeatureSet]. Detection never fails: queries the processor
// or build target cannot answer degrade to "feature absent".
//
// AVX is only reported when the processor supports it, the operating system
// has enabled XSAVE, and XCR0 shows that both XMM and YMM state are saved on
// context switch. AVX2 and AVX-512 are only considered when AVX is usable.
//
// # Quick Detect
//
//	fs := cpufeatures.Detect()
//	fmt.Print(fs) // one "<name>: true|false" line per feature
//
// # Cached Detection
//
// CPU features don't change at runtime. Hold a [Detector] to decode once
// and share the result across goroutines:
//
//	d := cpufeatures.NewDetector(cpufeatures.WithLogger(logger))
//	if d.FeatureSet().HasAVX2 {
//	    // ...
//	}
//
// # Gating
//
// Validate that required features are available:
//
//	if err := cpufeatures.Check(cpufeatures.FeatureAVX2, cpufeatures.FeatureFMA); err != nil {
//	    var fe *cpufeatures.FeatureError
//	    if errors.As(err, &fe) {
//	        log.Fatalf("cpu not supported: %s: %s", fe.Feature, fe.Reason)
//	    }
//	    log.Fatal(err)
//	}
//
// # Primitives
//
// [Decode] takes the two low-level primitives explicitly: a [Querier] for
// CPUID leaves and a [StateMaskReader] for XCR0. On amd64 and 386 the
// native primitives execute the instructions directly. On purego builds
// and other architectures, [TargetQuerier] synthesizes the leaf 1 bits the
// build target guarantees (GOARCH and the GOAMD64 level) and XCR0 reads as
// zero, so AVX and everything gated on it report absent.
package cpufeatures
