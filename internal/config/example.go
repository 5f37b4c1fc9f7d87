// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

// ExampleYAML is a complete pipeline definition: backbones, sequences, folding.
const ExampleYAML = `# protpipe pipeline definition
work_dir: ./binder_design
storage_format: json
inputs:
  dir: ./inputs
  glob: "*.pdb"
default_jobstarter: gpu
jobstarters:
  - name: gpu
    type: slurm
    max_cores: 10
    gpus: 1
    partition: gpu
    time_limit: 2h
    retries: 1
  - name: cpu
    type: local
    max_cores: 4
stages:
  - tool: rfdiffusion
    prefix: rfd
    settings:
      num_diffusions: 5
    options:
      - "'contigmap.contigs=[A1-80/0 50-70]'"
  - tool: ligandmpnn
    prefix: mpnn
    on_partial_failure: continue
    settings:
      nseq: 8
      model_type: protein_mpnn
  - tool: esmfold
    prefix: esm
    num_batches: 4
`

// ExampleHCL is ExampleYAML written in HCL.
const ExampleHCL = `# protpipe pipeline definition
work_dir           = "./binder_design"
storage_format     = "json"
default_jobstarter = "gpu"

inputs {
  dir  = "./inputs"
  glob = "*.pdb"
}

jobstarter "gpu" {
  type       = "slurm"
  max_cores  = 10
  gpus       = 1
  partition  = "gpu"
  time_limit = "2h"
  retries    = 1
}

jobstarter "cpu" {
  type      = "local"
  max_cores = 4
}

stage "rfdiffusion" {
  prefix   = "rfd"
  settings = { num_diffusions = 5 }
  options  = ["'contigmap.contigs=[A1-80/0 50-70]'"]
}

stage "ligandmpnn" {
  prefix             = "mpnn"
  on_partial_failure = "continue"
  settings = {
    nseq       = 8
    model_type = "protein_mpnn"
  }
}

stage "esmfold" {
  prefix      = "esm"
  num_batches = 4
}
`
