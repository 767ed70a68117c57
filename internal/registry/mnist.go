package registry

// MNISTKey 是内置 MNIST 手写数字数据集的注册键。
const MNISTKey = "mnist"

const mnistLocation = "https://storage.googleapis.com/cvdf-datasets/mnist/"

// MNIST 返回内置 MNIST 家族的定义。
func MNIST() Family {
	return Family{
		Key:         MNISTKey,
		Description: "MNIST handwritten digits (60k train / 10k test, 28x28 grayscale)",
		CacheDir:    "mnist",
		Files: []Descriptor{
			{
				Location: mnistLocation,
				Name:     "train-images-idx3-ubyte.gz",
				SHA256:   "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
			},
			{
				Location: mnistLocation,
				Name:     "train-labels-idx1-ubyte.gz",
				SHA256:   "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
			},
			{
				Location: mnistLocation,
				Name:     "t10k-images-idx3-ubyte.gz",
				SHA256:   "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
			},
			{
				Location: mnistLocation,
				Name:     "t10k-labels-idx1-ubyte.gz",
				SHA256:   "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
			},
		},
		Splits: map[string]Split{
			"train": {Images: "train-images-idx3-ubyte.gz", Labels: "train-labels-idx1-ubyte.gz"},
			"test":  {Images: "t10k-images-idx3-ubyte.gz", Labels: "t10k-labels-idx1-ubyte.gz"},
		},
	}
}

func init() {
	MustRegister(MNIST())
}
