package main

import "github.com/aretw0/sluice"

func sluiceStepMode(edgeOnly, toJob bool) sluice.StepMode {
	switch {
	case edgeOnly:
		return sluice.StepEdgeOnly
	case toJob:
		return sluice.StepToJob
	}
	return sluice.StepAdvance
}
